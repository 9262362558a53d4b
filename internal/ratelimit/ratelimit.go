// Package ratelimit implements the per-source minimum-interval gate.
// Grounded on golang.org/x/time/rate: a one-token-per-interval, burst-1
// limiter's reservation delay is exactly the non-blocking "time until
// ready" peek the scheduler needs, so the token bucket is reused rather
// than hand-rolling the interval math original_source's utils/rate_limit.py
// does with a bare mutex and time.monotonic.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates a single source to at most one grant per MinInterval.
type Limiter struct {
	rl *rate.Limiter
}

// New builds a Limiter admitting one slot every minInterval.
func New(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		minInterval = time.Millisecond
	}
	return &Limiter{rl: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next slot opens, then grants it. The context can
// cancel the wait early.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// TimeUntilReady is a non-blocking peek at the delay to the next slot,
// without consuming one. Used by the scheduler to pick the soonest-ready
// source among candidates.
func (l *Limiter) TimeUntilReady() time.Duration {
	r := l.rl.ReserveN(time.Now(), 1)
	delay := r.Delay()
	r.Cancel()
	if delay < 0 {
		return 0
	}
	return delay
}
