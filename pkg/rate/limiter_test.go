package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNoLimiter(t *testing.T) {
	l := &NoLimiter{}
	for i := 0; i < 10000; i++ {
		allowed, err := l.Allow("")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestLocalRateLimiter(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(2), 2)

	for i := 0; i < 2; i++ {
		allowed, err := l.Allow("a")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := l.Allow("a")
	assert.NoError(t, err)
	assert.False(t, allowed)

	// Ensure key partitioning is valid
	for i := 0; i < 2; i++ {
		allowed, err := l.Allow("b")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err = l.Allow("b")
	assert.NoError(t, err)
	assert.False(t, allowed)
}

func TestLocalRateLimiter_FractionalLimit(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(0.5), 0)

	allowed, err := l.Allow("a")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow("a")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLocalRateLimiter_SweepsIdleKeys(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(1), 1).(*localRateLimiter)

	_, err := l.Allow("a")
	require.NoError(t, err)

	l.Lock()
	l.limiters["a"].lastSeen = time.Now().Add(-2 * idleLimiterTTL)
	l.lastSweep = time.Now().Add(-2 * idleLimiterTTL)
	l.Unlock()

	_, err = l.Allow("b")
	require.NoError(t, err)

	l.Lock()
	defer l.Unlock()
	assert.Len(t, l.limiters, 1)
	assert.Contains(t, l.limiters, "b")
}
