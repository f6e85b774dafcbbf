package provider

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Retry policy for transient provider failures.
const (
	maxAttempts  = 3
	baseBackoff  = 500 * time.Millisecond
	maxBackoff   = 8 * time.Second
	jitterFactor = 0.25
)

// WithRetry runs fn, retrying transient ErrUnavailable failures with
// exponential backoff and jitter up to a fixed attempt ceiling. Not-found,
// auth, and quota errors are never retried.
func WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt)
			var unavailable *ErrUnavailable
			if errors.As(lastErr, &unavailable) && unavailable.RetryAfter > wait {
				wait = unavailable.RetryAfter
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		var unavailable *ErrUnavailable
		if !errors.As(err, &unavailable) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// backoff returns the wait before the given retry attempt, with jitter.
func backoff(attempt int) time.Duration {
	wait := baseBackoff << (attempt - 1)
	if wait > maxBackoff {
		wait = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(float64(wait) * jitterFactor))) //nolint:gosec // timing jitter, not security
	return wait + jitter
}
