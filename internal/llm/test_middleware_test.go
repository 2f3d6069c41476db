package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"framelabel/internal/tester"
)

type recordClient struct {
	name  string
	trace *[]string
}

func (r *recordClient) Name() string { return r.name }
func (r *recordClient) Close() error { return nil }
func (r *recordClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	*r.trace = append(*r.trace, r.name)
	return json.RawMessage(`{}`), nil
}

func tag(name string, trace *[]string) Middleware {
	return func(next Client) Client {
		return &tagged{name: name, next: next, trace: trace}
	}
}

type tagged struct {
	name  string
	next  Client
	trace *[]string
}

func (t *tagged) Name() string { return t.next.Name() }
func (t *tagged) Close() error { return t.next.Close() }
func (t *tagged) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	*t.trace = append(*t.trace, t.name)
	return t.next.GenerateJSON(ctx, prompt, input)
}

func TestWrapOrder(t *testing.T) {
	var trace []string
	cli := Wrap(&recordClient{name: "inner", trace: &trace}, tag("A", &trace), tag("B", &trace))
	_, err := cli.GenerateJSON(context.Background(), "p", nil)
	tester.NoErr(t, err)
	tester.Eq(t, trace, []string{"A", "B", "inner"})
	tester.Eq(t, cli.Name(), "inner")
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	fake := NewFakeClient(nil).
		Enqueue("", errors.New("502 bad gateway")).
		Enqueue("", errors.New("timeout")).
		Enqueue(`{"ok":true}`, nil)
	raw, err := Retry(3, time.Millisecond)(fake).GenerateJSON(context.Background(), "p", nil)
	tester.NoErr(t, err)
	tester.Eq(t, string(raw), `{"ok":true}`)
	tester.Eq(t, fake.Calls(), 3)
}

func TestRetryGivesUpWithLastError(t *testing.T) {
	fake := NewFakeClient(nil).Enqueue("", errors.New("first")).Enqueue("", errors.New("second"))
	_, err := Retry(2, time.Millisecond)(fake).GenerateJSON(context.Background(), "p", nil)
	tester.Eq(t, err.Error(), "second")
	tester.Eq(t, fake.Calls(), 2)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	cause := errors.New("401 unauthorized")
	fake := NewFakeClient(nil).Enqueue("", NewPermanentError(cause)).Enqueue(`{}`, nil)
	_, err := Retry(5, time.Millisecond)(fake).GenerateJSON(context.Background(), "p", nil)
	tester.True(t, errors.Is(err, cause))
	tester.Eq(t, fake.Calls(), 1)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := NewFakeClient(func(context.Context, string, any) (json.RawMessage, error) {
		cancel()
		return nil, errors.New("boom")
	})
	_, err := Retry(5, time.Hour)(fake).GenerateJSON(ctx, "p", nil)
	tester.True(t, errors.Is(err, context.Canceled))
	tester.Eq(t, fake.Calls(), 1)
}

func TestRetryHonoursRateLimitWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	fake := NewFakeClient(nil).Enqueue("", &RateLimitError{Wait: time.Minute, Err: errors.New("429")}).Enqueue(`{}`, nil)
	_, err := Retry(2, time.Millisecond)(fake).GenerateJSON(ctx, "p", nil)
	tester.True(t, errors.Is(err, context.DeadlineExceeded), "should wait the provider hint, not the backoff")
}

func TestRateLimitBurstThenBlocks(t *testing.T) {
	fake := NewFakeClient(nil)
	cli := RateLimit(0.001, 2)(fake)
	defer cli.Close()

	ctx := context.Background()
	_, err := cli.GenerateJSON(ctx, "p", nil)
	tester.NoErr(t, err)
	_, err = cli.GenerateJSON(ctx, "p", nil)
	tester.NoErr(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = cli.GenerateJSON(short, "p", nil)
	tester.True(t, errors.Is(err, context.DeadlineExceeded))
	tester.Eq(t, fake.Calls(), 2)
}

func TestRateLimitDisabled(t *testing.T) {
	fake := NewFakeClient(nil)
	cli := RateLimit(0, 0)(fake)
	for i := 0; i < 10; i++ {
		_, err := cli.GenerateJSON(context.Background(), "p", nil)
		tester.NoErr(t, err)
	}
	tester.NoErr(t, cli.Close())
	tester.Eq(t, fake.Calls(), 10)
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	fake := NewFakeClient(nil).Enqueue(`{"a":1}`, nil).Enqueue("", errors.New("nope"))
	cli := WithLogging(logger)(fake)
	ctx := WithPhase(context.Background(), "adjudicate")

	_, _ = cli.GenerateJSON(ctx, "prompt", map[string]int{"x": 1})
	_, _ = cli.GenerateJSON(ctx, "prompt", nil)
	out := buf.String()
	tester.Contains(t, out, "LLM request (FakeLLM, adjudicate)")
	tester.Contains(t, out, "LLM response (FakeLLM, adjudicate): 7 bytes")
	tester.Contains(t, out, "LLM error (FakeLLM, adjudicate): nope")
}

func TestPhaseDefault(t *testing.T) {
	tester.Eq(t, PhaseFrom(context.Background()), "unknown")
}

func TestOpenProviders(t *testing.T) {
	cli, err := Open(context.Background(), ProviderConfig{Provider: "none"})
	tester.NoErr(t, err)
	tester.True(t, cli == nil)

	cli, err = Open(context.Background(), ProviderConfig{Provider: "FAKE"})
	tester.NoErr(t, err)
	tester.Eq(t, cli.Name(), "FakeLLM")
	tester.NoErr(t, cli.Close())

	_, err = Open(context.Background(), ProviderConfig{Provider: "openai"})
	tester.Err(t, err, "openai needs a model")
	_, err = Open(context.Background(), ProviderConfig{Provider: "claude-desktop"})
	tester.Err(t, err)
}
