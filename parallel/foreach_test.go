package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach(t *testing.T) {
	for _, limit := range []int{-1, 0, 1, 3, 100} {
		var sum atomic.Int64
		seen := make([]int32, 50)
		ForEach(len(seen), limit, func(i int) {
			atomic.AddInt32(&seen[i], 1)
			sum.Add(int64(i))
		})
		assert.EqualValues(t, 49*50/2, sum.Load(), "limit %d", limit)
		for i, v := range seen {
			assert.EqualValues(t, 1, v, "index %d visited %d times", i, v)
		}
	}
	ForEach(0, 4, func(int) { t.Fatal("body called for empty loop") })
}

func TestShards(t *testing.T) {
	tests := []struct {
		length, parts int
		expected      [][2]int
	}{
		{10, 1, [][2]int{{0, 10}}},
		{10, 3, [][2]int{{0, 4}, {4, 7}, {7, 10}}},
		{2, 4, [][2]int{{0, 1}, {1, 2}}},
		{5, 0, [][2]int{{0, 5}}},
		{0, 2, nil},
	}
	for _, tc := range tests {
		got := Shards(tc.length, tc.parts)
		require.Equal(t, tc.expected, got, "Shards(%d, %d)", tc.length, tc.parts)
	}
}
