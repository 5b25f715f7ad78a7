package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForecastPoster/internal/domain"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3}, func(context.Context) error {
		calls++
		if calls < 3 {
			return domain.Transient(errors.New("503"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	perm := domain.Permanent(errors.New("401"))
	err := Do(context.Background(), Policy{MaxAttempts: 5}, func(context.Context) error {
		calls++
		return perm
	})
	assert.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	var retried []int
	err := Do(context.Background(), Policy{
		MaxAttempts: 4,
		OnRetry:     func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) },
	}, func(context.Context) error {
		calls++
		return domain.Transient(errors.New("timeout"))
	})
	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, retried)
}

func TestDoUsesRateLimitDelay(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	p := Policy{
		MaxAttempts:    3,
		Delay:          time.Millisecond,
		RateLimitDelay: 2 * time.Millisecond,
		OnRetry:        func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) },
	}
	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls == 1 {
			return domain.RateLimited(errors.New("429"))
		}
		if calls == 2 {
			return domain.Transient(errors.New("502"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Millisecond, time.Millisecond}, waits)
}

func TestDoHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 3, Delay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return domain.Transient(errors.New("reset"))
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
