package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeReply computes a canned answer from the request.
type FakeReply func(ctx context.Context, prompt string, input any) (json.RawMessage, error)

type fakeResult struct {
	raw json.RawMessage
	err error
}

// FakeClient is a deterministic offline Client. Queued results are served
// first, then reply; with neither it answers "{}".
type FakeClient struct {
	mu      sync.Mutex
	reply   FakeReply
	queue   []fakeResult
	calls   int
	prompts []string
}

func NewFakeClient(reply FakeReply) *FakeClient {
	return &FakeClient{reply: reply}
}

// Enqueue adds one result served by the next call.
func (f *FakeClient) Enqueue(raw string, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	var r json.RawMessage
	if raw != "" {
		r = json.RawMessage(raw)
	}
	f.queue = append(f.queue, fakeResult{raw: r, err: err})
	return f
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastPrompt returns the most recent prompt, or "" before any call.
func (f *FakeClient) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if len(f.queue) > 0 {
		r := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return r.raw, r.err
	}
	reply := f.reply
	f.mu.Unlock()
	if reply != nil {
		return reply(ctx, prompt, input)
	}
	return json.RawMessage(`{}`), nil
}
