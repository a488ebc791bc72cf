// Package polling provides the single "poll until terminal or timeout"
// primitive shared by every fixed-interval re-query in the codebase.
package polling

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when the attempt budget ran out before the
// probed resource reached a terminal state.
var ErrExhausted = errors.New("poll attempts exhausted")

// Probe performs one query. done=true stops the loop and hands value back to
// the caller; a non-nil error aborts immediately.
type Probe[T any] func(ctx context.Context) (value T, done bool, err error)

// Config bounds a poll loop. No backoff: the probed resources are expected
// to resolve within a small number of fixed-interval attempts.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultConfig matches the verification resource's expected resolution window.
var DefaultConfig = Config{Interval: 3 * time.Second, MaxAttempts: 20}

func (c Config) normalize() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultConfig.Interval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultConfig.MaxAttempts
	}
	return c
}

// Poll re-invokes probe on a fixed interval until it reports done, the
// attempt budget is exhausted (ErrExhausted), or ctx is cancelled. The first
// attempt runs immediately.
func Poll[T any](ctx context.Context, cfg Config, probe Probe[T]) (T, error) {
	var zero T
	cfg = cfg.normalize()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		value, done, err := probe(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}
		if attempt >= cfg.MaxAttempts {
			return zero, ErrExhausted
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}
