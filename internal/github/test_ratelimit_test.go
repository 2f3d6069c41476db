package github

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"framelabel/internal/tester"
)

func quota(remaining, limit int, reset time.Time) http.Header {
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	return h
}

func TestRateLimiter_Observe(t *testing.T) {
	r := NewRateLimiter(-1)
	_, ok := r.Status()
	tester.False(t, ok)

	r.Observe(http.Header{})
	_, ok = r.Status()
	tester.False(t, ok, "responses without quota headers are ignored")

	reset := time.Unix(1_700_000_000, 0)
	r.Observe(quota(4200, 5000, reset))
	st, ok := r.Status()
	tester.True(t, ok)
	tester.Eq(t, st, RateLimitStatus{Remaining: 4200, Limit: 5000, ResetAt: reset})
}

func TestRateLimiter_DelayHonoursBuffer(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiter(100)
	r.now = func() time.Time { return now }

	r.Observe(quota(101, 5000, now.Add(time.Hour)))
	tester.Eq(t, r.Delay(), time.Duration(0))

	r.Observe(quota(100, 5000, now.Add(10*time.Second)))
	tester.Eq(t, r.Delay(), 11*time.Second)

	r.Observe(quota(0, 5000, now.Add(-time.Minute)))
	tester.Eq(t, r.Delay(), time.Duration(0), "reset already passed")
}

func TestRateLimiter_Wait(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiter(10)
	r.now = func() time.Time { return now }
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	tester.NoErr(t, r.Wait(context.Background()))
	tester.Eq(t, len(slept), 0)

	r.Observe(quota(3, 60, now.Add(59*time.Second)))
	tester.NoErr(t, r.Wait(context.Background()))
	tester.Eq(t, slept, []time.Duration{time.Minute})
	_, ok := r.Status()
	tester.False(t, ok, "status is forgotten after the reset wait")
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	now := time.Now()
	r := NewRateLimiter(0)
	r.Observe(quota(0, 60, now.Add(time.Hour)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tester.Err(t, r.Wait(ctx))

	var nilLimiter *RateLimiter
	tester.NoErr(t, nilLimiter.Wait(context.Background()))
}
