// Package retryutil retries flaky remote calls a bounded number of times.
package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultAttempts = 3
	defaultDelay    = 2 * time.Second
)

// Do runs fn up to attempts times, sleeping delay between tries. It
// returns the last error when every attempt fails, and stops early when
// the context is done.
func Do(ctx context.Context, logger *slog.Logger, name string, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if delay <= 0 {
		delay = defaultDelay
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if logger != nil {
			logger.Warn(name+"_retrying", "attempt", attempt, "error", err.Error())
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
