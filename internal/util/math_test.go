package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(0.4, 1.0, 16.5))
	assert.Equal(t, 16.5, Clamp(20.0, 1.0, 16.5))
	assert.Equal(t, 8.2, Clamp(8.2, 1.0, 16.5))
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
}

func TestStd(t *testing.T) {
	assert.Equal(t, 0.0, Std([]float64{5}))
	// Population std of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	assert.InDelta(t, 2.0, Std([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestQuantile(t *testing.T) {
	xs := []float64{4, 1, 3, 2} // unsorted on purpose

	assert.Equal(t, 1.0, Quantile(xs, 0))
	assert.Equal(t, 4.0, Quantile(xs, 1))
	assert.InDelta(t, 2.5, Quantile(xs, 0.5), 1e-9)
	assert.InDelta(t, 1.3, Quantile(xs, 0.1), 1e-9)
	assert.Equal(t, 0.0, Quantile(nil, 0.5))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, Unique([]int64{3, 1, 3, 2, 1}))
}
