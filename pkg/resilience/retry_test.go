package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("transient failure")

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0.5,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "read", fastRetry(3), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "read", fastRetry(5), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky-op", fastRetry(3), func() error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 3, calls)
	require.ErrorIs(t, err, errFlaky)
	assert.Contains(t, err.Error(), "all 3 attempts failed for flaky-op")
}

func TestRetryIfShortCircuits(t *testing.T) {
	cfg := fastRetry(5)
	cfg.RetryIf = func(err error) bool { return !errors.Is(err, errFlaky) }

	calls := 0
	err := Retry(context.Background(), "read", cfg, func() error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 1, calls)
	// Non-retryable errors surface as-is, without the attempt wrapper.
	assert.Equal(t, errFlaky, err)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, "read", fastRetry(3), func() error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 1, calls)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetryAbortsDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	cfg := fastRetry(3)
	cfg.InitialDelay = 300 * time.Millisecond

	calls := 0
	err := Retry(ctx, "read", cfg, func() error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 1, calls)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestComputeDelayClampsToMax(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2,
		JitterFraction: 0.1,
	}
	for attempt := 1; attempt <= 10; attempt++ {
		d := computeDelay(attempt, cfg)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, cfg.MaxDelay)
	}
}
