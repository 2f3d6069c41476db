package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"
)

// Middleware decorates a Client.
type Middleware func(Client) Client

// Wrap applies mws so that the first one is outermost:
// Wrap(inner, A, B) == A(B(inner)).
func Wrap(inner Client, mws ...Middleware) Client {
	for i := len(mws) - 1; i >= 0; i-- {
		inner = mws[i](inner)
	}
	return inner
}

// decorator forwards Name and Close to the wrapped client; each middleware
// overrides GenerateJSON.
type decorator struct{ next Client }

func (d decorator) Name() string { return d.next.Name() }
func (d decorator) Close() error { return d.next.Close() }

// RateLimit spaces calls through a token bucket of rps refilling up to burst.
// rps <= 0 disables it.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		return &throttled{decorator{next}, newTokenBucket(rps, burst)}
	}
}

type throttled struct {
	decorator
	bucket *tokenBucket
}

func (c *throttled) Close() error {
	c.bucket.Stop()
	return c.next.Close()
}

func (c *throttled) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := c.bucket.Acquire(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateJSON(ctx, prompt, input)
}

// Retry makes up to attempts calls, doubling the pause from base each time.
// A PermanentError ends the loop at once, and a RateLimitError's Wait is used
// when it is longer than the computed pause.
func Retry(attempts int, base time.Duration) Middleware {
	attempts = max(attempts, 1)
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{decorator{next}, attempts, base}
	}
}

type retrying struct {
	decorator
	attempts int
	base     time.Duration
}

func (r *retrying) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			if werr := sleep(ctx, r.pause(attempt-1, err)); werr != nil {
				return nil, werr
			}
		}
		var raw json.RawMessage
		if raw, err = r.next.GenerateJSON(ctx, prompt, input); err == nil {
			return raw, nil
		}
		var perm *PermanentError
		if errors.As(err, &perm) {
			return nil, err
		}
	}
	return nil, err
}

func (r *retrying) pause(n int, cause error) time.Duration {
	d := r.base << n
	var rl *RateLimitError
	if errors.As(cause, &rl) && rl.Wait > d {
		d = rl.Wait
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WithLogging logs one line per call and one per outcome, tagged with the
// phase carried by ctx. A nil logger means log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next Client) Client {
		return &logged{decorator{next}, logger}
	}
}

type logged struct {
	decorator
	log *log.Logger
}

func (l *logged) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	tag := l.Name() + ", " + PhaseFrom(ctx)
	in, _ := json.Marshal(input)
	l.log.Printf("LLM request (%s): %d bytes", tag, len(prompt)+len(in))

	start := time.Now()
	raw, err := l.next.GenerateJSON(ctx, prompt, input)
	if err != nil {
		l.log.Printf("LLM error (%s): %v", tag, err)
		return raw, err
	}
	l.log.Printf("LLM response (%s): %d bytes in %s", tag, len(raw), time.Since(start).Round(time.Millisecond))
	return raw, nil
}
