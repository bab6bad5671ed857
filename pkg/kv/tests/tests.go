package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/step-tracker/pkg/kv"
)

func RunTests(t *testing.T, s kv.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s kv.Store){
		testHappyPath,
		testInvalidKey,
		testKeyIsolation,
		testConcurrentSets,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s kv.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.Get(ctx, "step_tracker_2024-03-10")
		assert.Equal(t, kv.ErrNotFound, err)

		require.NoError(t, s.Set(ctx, "step_tracker_2024-03-10", "120"))

		actual, err := s.Get(ctx, "step_tracker_2024-03-10")
		require.NoError(t, err)
		assert.Equal(t, "120", actual)

		require.NoError(t, s.Set(ctx, "step_tracker_2024-03-10", "97"))

		actual, err = s.Get(ctx, "step_tracker_2024-03-10")
		require.NoError(t, err)
		assert.Equal(t, "97", actual)

		require.NoError(t, s.Set(ctx, "step_tracker_2024-03-10", ""))

		actual, err = s.Get(ctx, "step_tracker_2024-03-10")
		require.NoError(t, err)
		assert.Empty(t, actual)
	})
}

func testInvalidKey(t *testing.T, s kv.Store) {
	t.Run("testInvalidKey", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.Get(ctx, "")
		assert.Equal(t, kv.ErrInvalidKey, err)

		assert.Equal(t, kv.ErrInvalidKey, s.Set(ctx, "", "1"))
	})
}

func testKeyIsolation(t *testing.T, s kv.Store) {
	t.Run("testKeyIsolation", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "step_tracker_2024-03-10", "10"))
		require.NoError(t, s.Set(ctx, "step_tracker_2024-03-11", "11"))

		actual, err := s.Get(ctx, "step_tracker_2024-03-10")
		require.NoError(t, err)
		assert.Equal(t, "10", actual)

		actual, err = s.Get(ctx, "step_tracker_2024-03-11")
		require.NoError(t, err)
		assert.Equal(t, "11", actual)

		_, err = s.Get(ctx, "step_tracker_2024-03-12")
		assert.Equal(t, kv.ErrNotFound, err)
	})
}

func testConcurrentSets(t *testing.T, s kv.Store) {
	t.Run("testConcurrentSets", func(t *testing.T) {
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, fmt.Sprintf("key%d", i), fmt.Sprintf("%d", i)))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 16; i++ {
			actual, err := s.Get(ctx, fmt.Sprintf("key%d", i))
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("%d", i), actual)
		}
	})
}
