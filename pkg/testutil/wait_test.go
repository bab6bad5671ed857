package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitFor(t *testing.T) {
	require.NoError(t, WaitFor(50*time.Millisecond, 25*time.Millisecond, func() bool {
		return true
	}))

	require.Error(t, WaitFor(50*time.Millisecond, 25*time.Millisecond, func() bool {
		return false
	}))

	require.Error(t, WaitFor(50*time.Millisecond, 100*time.Millisecond, func() bool {
		return true
	}))
}

func TestWaitForValue(t *testing.T) {
	var counter int64
	go func() {
		for i := 0; i < 5; i++ {
			atomic.AddInt64(&counter, 1)
			time.Sleep(time.Millisecond)
		}
	}()

	require.NoError(t, WaitForValue(time.Second, time.Millisecond, int64(5), func() int64 {
		return atomic.LoadInt64(&counter)
	}))

	err := WaitForValue(20*time.Millisecond, 5*time.Millisecond, "never", func() string {
		return "always"
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last observed always")
}
