package llm

import (
	"context"
	"sync"
	"time"
)

// tokenBucket admits at most rate calls per second after an initial burst.
// Tokens are refilled from elapsed time on each call; there is no refill
// goroutine. A nil bucket admits everything.
type tokenBucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time

	done chan struct{}
	once sync.Once
}

func newTokenBucket(rps float64, burst int) *tokenBucket {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	b := &tokenBucket{
		rate:   rps,
		burst:  float64(burst),
		tokens: float64(burst),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	b.last = b.now()
	return b
}

// take consumes a token when one is available, otherwise it reports how
// long until the next one.
func (b *tokenBucket) take() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
	}
	b.last = now
	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// Acquire blocks until a token is available, the context ends or the
// bucket is stopped.
func (b *tokenBucket) Acquire(ctx context.Context) error {
	if b == nil {
		return nil
	}
	for {
		select {
		case <-b.done:
			return context.Canceled
		default:
		}
		wait := b.take()
		if wait == 0 {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-b.done:
			t.Stop()
			return context.Canceled
		case <-t.C:
		}
	}
}

// Stop fails pending and future Acquire calls. Safe to call twice.
func (b *tokenBucket) Stop() {
	if b == nil {
		return
	}
	b.once.Do(func() { close(b.done) })
}
