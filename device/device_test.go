//go:build !cuda

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSelectWithoutCuda(t *testing.T) {
	for _, rank := range []int{-1, 0, 3} {
		p := Select(false, rank, zap.NewNop())
		assert.Equal(t, 1, p.Devices)
		assert.Empty(t, p.GPUs)
		assert.Equal(t, rank != -1, p.Distributed())
		assert.True(t, p.Cores > 0)
	}
	assert.Equal(t, 1, Select(true, -1, nil).Devices)
}
