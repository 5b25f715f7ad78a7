// Package retry runs an operation a bounded number of times with a fixed delay.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ForecastPoster/internal/domain"
)

// ErrMaxAttemptsExceeded is wrapped into the returned error once every attempt has failed.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// Policy configures a retry loop.
type Policy struct {
	// MaxAttempts counts the initial attempt; values below 1 are treated as 1.
	MaxAttempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// RateLimitDelay replaces Delay when the failure is a rate-limit rejection.
	// Zero falls back to Delay.
	RateLimitDelay time.Duration
	// IsRetryable classifies errors; nil means domain.IsRetryable.
	IsRetryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Do calls fn until it succeeds, returns a non-retryable error, or attempts run out.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.IsRetryable
	if retryable == nil {
		retryable = domain.IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		wait := p.waitFor(err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, attempts, lastErr)
}

func (p Policy) waitFor(err error) time.Duration {
	if domain.IsRateLimited(err) && p.RateLimitDelay > 0 {
		return p.RateLimitDelay
	}
	return p.Delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
