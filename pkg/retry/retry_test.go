package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/step-tracker/pkg/retry/backoff"
)

func TestRealSleeper(t *testing.T) {
	sleeperImpl = &realSleeper{}

	start := time.Now()
	n, err := Retry(func() error { return errors.New("err") },
		Limit(2),
		Backoff(backoff.Constant(500*time.Millisecond), 500*time.Millisecond),
	)

	assert.NotNil(t, err)
	assert.EqualValues(t, 2, n)
	assert.True(t, 500*time.Millisecond <= time.Since(start))
	assert.True(t, 1*time.Second > time.Since(start))
}

func TestRetry_StrategyOrdering(t *testing.T) {
	retriableErr := errors.New("retriable")
	strategies := []Strategy{Limit(5), RetriableErrors(retriableErr)}

	attempts, err := Retry(func() error { return nil }, strategies...)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), attempts)

	attempts, err = Retry(func() error { return errors.New("unknown") }, strategies...)
	assert.EqualError(t, err, "unknown")
	assert.Equal(t, uint(1), attempts)

	attempts, err = Retry(func() error { return retriableErr }, strategies...)
	assert.Equal(t, retriableErr, err)
	assert.Equal(t, uint(5), attempts)
}

func TestRetryWithContext_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "caller")

	var calls int
	attempts, err := RetryWithContext(ctx, func(ctx context.Context) error {
		calls++
		assert.Equal(t, "caller", ctx.Value(key{}))
		if calls < 3 {
			return errors.New("unavailable")
		}
		return nil
	}, Limit(5))
	require.NoError(t, err)
	assert.Equal(t, uint(3), attempts)
}

func TestRetryWithContext_DoneBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := RetryWithContext(ctx, func(context.Context) error {
		t.Fatal("action should not run")
		return nil
	}, Limit(5))
	assert.Equal(t, context.Canceled, err)
	assert.Zero(t, attempts)
}

func TestRetryWithContext_CancelledDuringAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts, err := RetryWithContext(ctx, func(context.Context) error {
		cancel()
		return errors.New("interrupted")
	}, Limit(5))
	assert.EqualError(t, err, "interrupted")
	assert.Equal(t, uint(1), attempts)
}

func TestRetryWithContext_CancelledDuringBackoff(t *testing.T) {
	sleeperImpl = &realSleeper{}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	attempts, err := RetryWithContext(ctx, func(context.Context) error {
		return errors.New("unavailable")
	},
		Limit(5),
		BackoffWithContext(ctx, backoff.Constant(time.Minute), time.Minute),
	)
	assert.EqualError(t, err, "unavailable")
	assert.Equal(t, uint(1), attempts)
	assert.True(t, 10*time.Second > time.Since(start))
}
