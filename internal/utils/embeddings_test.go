package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquaredL2Distance(t *testing.T) {
	d, err := SquaredL2Distance([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, d, 1e-6)

	sq, err := SquaredL2Distance([]float32{1, 2, 3}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Zero(t, sq)

	_, err = SquaredL2Distance([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
