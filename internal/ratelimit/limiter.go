// Package ratelimit paces outbound SES sends to the account's maximum send rate.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	// Sends allowed per second; zero or less disables pacing.
	MaxPerSecond float64

	// Clock for testing (nil uses real time)
	Clock Clock
	// Sleep for testing (nil waits on a timer)
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns the SES sandbox send rate.
func DefaultConfig() *Config {
	return &Config{MaxPerSecond: 1}
}

// Limiter spaces calls to Wait evenly at the configured rate.
type Limiter struct {
	limiter *rate.Limiter
	clock   Clock
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	l := &Limiter{clock: clock, sleep: sleep}
	if cfg.MaxPerSecond > 0 {
		// Burst of one keeps sends evenly spaced.
		l.limiter = rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), 1)
	}
	return l
}

// Wait blocks until the caller may send. A reservation is returned to the
// limiter when ctx ends before it is used.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}

	now := l.clock.Now()
	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("rate limit of %v/s cannot be satisfied", l.limiter.Limit())
	}

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return ctx.Err()
	}
	if err := l.sleep(ctx, delay); err != nil {
		r.CancelAt(l.clock.Now())
		return err
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
