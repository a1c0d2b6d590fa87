package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces operations evenly at a fixed rate. Each Wait reserves
// the next free slot and sleeps until it. A limiter built with a
// non-positive rate never blocks.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time // earliest start of the next reservation
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute. The first operation is never delayed.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{}
	if perMinute > 0 {
		rl.interval = time.Minute / time.Duration(perMinute)
	}
	return rl
}

// Wait blocks until the caller's slot or until ctx is done. A cancelled
// reservation is handed back when no later one was made.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.interval <= 0 {
		return ctx.Err()
	}

	rl.mu.Lock()
	now := time.Now()
	at := rl.next
	if at.Before(now) {
		at = now
	}
	rl.next = at.Add(rl.interval)
	rl.mu.Unlock()

	d := at.Sub(now)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		rl.mu.Lock()
		if rl.next.Equal(at.Add(rl.interval)) {
			rl.next = at
		}
		rl.mu.Unlock()
		return ctx.Err()
	}
}
