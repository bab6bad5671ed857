package sync

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_Consistency(t *testing.T) {
	r := newRing(64, 200)

	for i := 0; i < 256; i++ {
		key := []byte(fmt.Sprintf("step_tracker_2024-01-%02d", i%31+1))
		stripe := r.shard(key)
		assert.True(t, stripe >= 0 && stripe < 64)

		for j := 0; j < 64; j++ {
			assert.Equal(t, stripe, r.shard(key))
		}
	}
}

func TestRing_Distribution(t *testing.T) {
	stripeCount := 5
	iterations := 500000
	marginOfError := 0.1
	expectedFrequency := iterations / stripeCount

	r := newRing(uint(stripeCount), 200)

	hits := make(map[int]int)
	for i := 0; i < iterations; i++ {
		hits[r.shard([]byte(fmt.Sprintf("key%d", i)))]++
	}

	assert.Len(t, hits, stripeCount)
	for _, hitCount := range hits {
		assert.True(t, math.Abs(float64(hitCount-expectedFrequency)) <= marginOfError*float64(expectedFrequency))
	}
}

func TestRing_SingleStripe(t *testing.T) {
	r := newRing(1, 10)
	for i := 0; i < 100; i++ {
		assert.Equal(t, 0, r.shard([]byte(fmt.Sprintf("key%d", i))))
	}
}
