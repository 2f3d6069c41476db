package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client asks a model for one JSON object. Implementations return the raw
// object; decoding is the caller's job.
type Client interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

var ErrInvalidJSON = errors.New("llm: invalid JSON from model")

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// RateLimitError is returned when the provider throttled the call. Wait is
// the provider's hint, zero when none was given.
type RateLimitError struct {
	Wait time.Duration
	Err  error
}

func (e *RateLimitError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("%v (retry in %s)", e.Err, e.Wait)
	}
	return e.Err.Error()
}
func (e *RateLimitError) Unwrap() error { return e.Err }

// ---- phase ----

type ctxKeyPhase struct{}

// WithPhase tags ctx with the pipeline step issuing the call, for logs.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// PhaseFrom returns the phase string stored in the context.
func PhaseFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyPhase{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}

// rawText returns model text as-is; parsing tolerates fences and prose,
// so only empty output is rejected here.
func rawText(s string) (json.RawMessage, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(s), nil
}
