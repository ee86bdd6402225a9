// Package retry provides generic retry with exponential backoff for
// transient failures on outbound calls. It respects context cancellation.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy holds retry configuration.
type Policy struct {
	Attempts     int           // Maximum number of attempts (including the first)
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Upper bound on the backoff delay
	Multiplier   float64       // Backoff growth factor
}

// DefaultPolicy provides sensible defaults for outbound HTTP calls.
var DefaultPolicy = Policy{
	Attempts:     3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Multiplier:   2.0,
}

// Retryable decides whether an error should trigger another attempt.
type Retryable func(error) bool

// Do executes fn with exponential backoff until it succeeds, the error is not
// retryable, the attempts are exhausted, or the context ends.
func Do[T any](ctx context.Context, policy Policy, retryable Retryable, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := policy.InitialDelay

	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return zero, err
		}

		if attempt < policy.Attempts-1 {
			select {
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * policy.Multiplier)
				if delay > policy.MaxDelay {
					delay = policy.MaxDelay
				}
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}
