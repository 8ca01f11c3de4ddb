package lane

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRadiusHistory_MeanOfRetained(t *testing.T) {
	h := NewRadiusHistory(3)
	for _, r := range []float64{100, 110, 90, 95, 105} {
		h.Push(r)
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []float64{90, 95, 105}, h.Values())

	mean, ok := h.Mean()
	assert.True(t, ok)
	assert.InDelta(t, 96.6667, mean, 1e-4)
}

func TestRadiusHistory_PartialFill(t *testing.T) {
	h := NewRadiusHistory(3)
	_, ok := h.Mean()
	assert.False(t, ok)

	h.Push(100)
	h.Push(110)
	mean, ok := h.Mean()
	assert.True(t, ok)
	assert.Equal(t, 105.0, mean)
	assert.Equal(t, []float64{100, 110}, h.Values())
}

func TestRadiusHistory_Reset(t *testing.T) {
	h := NewRadiusHistory(2)
	h.Push(1)
	h.Push(2)
	h.Push(3)
	h.Reset()

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 2, h.Cap())
	assert.Empty(t, h.Values())

	h.Push(7)
	assert.Equal(t, []float64{7}, h.Values())
}

func TestRadiusHistory_MinimumCapacity(t *testing.T) {
	h := NewRadiusHistory(0)
	assert.Equal(t, 1, h.Cap())
	h.Push(4)
	h.Push(5)
	assert.Equal(t, []float64{5}, h.Values())
}

func TestRadiusHistory_InfinitePropagates(t *testing.T) {
	h := NewRadiusHistory(3)
	h.Push(500)
	h.Push(math.Inf(1))
	mean, ok := h.Mean()
	assert.True(t, ok)
	assert.True(t, math.IsInf(mean, 1))
}
