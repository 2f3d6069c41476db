package github

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// DefaultBuffer is the number of requests kept in reserve before waiting.
const DefaultBuffer = 100

// RateLimitStatus is the last quota reported by the API.
type RateLimitStatus struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RateLimiter tracks the X-RateLimit-* headers and blocks callers while the
// remaining quota is at or under the buffer.
type RateLimiter struct {
	mu     sync.Mutex
	buffer int
	status RateLimitStatus
	known  bool

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRateLimiter builds a limiter. A negative buffer selects DefaultBuffer.
func NewRateLimiter(buffer int) *RateLimiter {
	if buffer < 0 {
		buffer = DefaultBuffer
	}
	return &RateLimiter{buffer: buffer, now: time.Now, sleep: sleepCtx}
}

// Observe records the quota headers of a response. Responses without the
// headers leave the last status untouched.
func (r *RateLimiter) Observe(h http.Header) {
	if r == nil || h == nil {
		return
	}
	rem := h.Get("X-RateLimit-Remaining")
	if rem == "" {
		return
	}
	remaining, err := strconv.Atoi(rem)
	if err != nil {
		return
	}
	st := RateLimitStatus{Remaining: remaining, Limit: 5000}
	if v, err := strconv.Atoi(h.Get("X-RateLimit-Limit")); err == nil {
		st.Limit = v
	}
	if v, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil && v > 0 {
		st.ResetAt = time.Unix(v, 0)
	}

	r.mu.Lock()
	r.status = st
	r.known = true
	r.mu.Unlock()
}

// Status returns the last observed quota; ok is false before any response.
func (r *RateLimiter) Status() (RateLimitStatus, bool) {
	if r == nil {
		return RateLimitStatus{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.known
}

// Delay is how long a caller must wait before the next request.
func (r *RateLimiter) Delay() time.Duration {
	st, ok := r.Status()
	if !ok || st.Remaining > r.buffer || st.ResetAt.IsZero() {
		return 0
	}
	d := st.ResetAt.Sub(r.now()) + time.Second
	if d < 0 {
		return 0
	}
	return d
}

// Wait blocks until the quota resets or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	d := r.Delay()
	if d <= 0 {
		return nil
	}
	st, _ := r.Status()
	log.Printf("github: rate limit low (%d/%d remaining), waiting %s", st.Remaining, st.Limit, d.Round(time.Second))
	if err := r.sleep(ctx, d); err != nil {
		return err
	}
	// The quota is refreshed by the next response.
	r.mu.Lock()
	r.known = false
	r.mu.Unlock()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
