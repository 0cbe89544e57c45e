// Package retry provides a fixed-delay bounded retry wrapper for upstream calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"magpie/internal/logger"
)

// ErrPermanent marks an error that should not be retried.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Do runs op up to attempts times with a fixed delay between tries.
// The last error is returned wrapped; ctx cancellation aborts the wait.
func Do[T any](ctx context.Context, name string, attempts int, delay time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			logger.Warnf("[retry] %s (%d/%d): %v", name, i, attempts-1, lastErr)
			if err := sleep(ctx, delay); err != nil {
				return zero, fmt.Errorf("%s: %w (last error: %v)", name, err, lastErr)
			}
		}
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrPermanent) || ctx.Err() != nil {
			break
		}
	}
	return zero, fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
