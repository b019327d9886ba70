package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/aromance/internal/service"
)

// ErrMaxRetries is joined to the last failure once every attempt is used.
var ErrMaxRetries = errors.New("max retries exceeded")

func retryDefaults(opts service.RetryOptions) service.RetryOptions {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay < opts.InitialDelay {
		opts.MaxDelay = opts.InitialDelay
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = 2
	}
	return opts
}

// backoff returns the wait before attempt n+1, growing geometrically from
// InitialDelay and capped at MaxDelay.
func backoff(opts service.RetryOptions, n int) time.Duration {
	d := float64(opts.InitialDelay)
	for i := 1; i < n; i++ {
		d *= opts.Multiplier
		if d >= float64(opts.MaxDelay) {
			return opts.MaxDelay
		}
	}
	return time.Duration(d)
}

// WithRetry runs operation until it succeeds, returns an error IsRetryable
// rejects, or runs out of attempts. Rejected errors come back as is, so
// callers still see their kind; exhaustion wraps the last error with
// ErrMaxRetries.
func WithRetry(ctx context.Context, operation func() error, opts service.RetryOptions) error {
	opts = retryDefaults(opts)

	for n := 1; ; n++ {
		err := operation()
		switch {
		case err == nil:
			return nil
		case !IsRetryable(err):
			return err
		case n >= opts.MaxAttempts:
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, n, err)
		}

		wait := backoff(opts, n)
		slog.Debug("Retrying after transport failure", "attempt", n, "max_attempts", opts.MaxAttempts, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
