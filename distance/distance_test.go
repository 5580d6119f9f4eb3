package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquaredEuclidean(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{"Simple", []float64{1, 2, 3}, []float64{4, 5, 6}, 27},
		{"Zero", []float64{0, 0, 0}, []float64{0, 0, 0}, 0},
		{"Identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 0},
		{"Mixed", []float64{1, -1}, []float64{-1, 1}, 8},
		{"Empty", []float64{}, []float64{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SquaredEuclidean(tt.a, tt.b), 1e-12)
		})
	}
}

func TestEuclidean(t *testing.T) {
	t.Run("Pythagoras", func(t *testing.T) {
		assert.InDelta(t, 5.0, Euclidean([]float64{0, 0}, []float64{3, 4}), 1e-12)
	})

	t.Run("Symmetric", func(t *testing.T) {
		a := []float64{5.1, 3.5, 1.4, 0.2}
		b := []float64{6.2, 2.9, 4.3, 1.3}
		assert.Equal(t, Euclidean(a, b), Euclidean(b, a))
	})

	t.Run("ZeroIffIdentical", func(t *testing.T) {
		a := []float64{5.1, 3.5, 1.4, 0.2}
		assert.Zero(t, Euclidean(a, []float64{5.1, 3.5, 1.4, 0.2}))
		assert.Positive(t, Euclidean(a, []float64{5.1, 3.5, 1.4, 0.3}))
	})
}

func TestEuclideanChecked(t *testing.T) {
	d, err := EuclideanChecked([]float64{1, 1}, []float64{1, 1})
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = EuclideanChecked([]float64{1, 2, 3}, []float64{1, 2})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Left)
	assert.Equal(t, 2, dm.Right)
}

func TestNearest(t *testing.T) {
	centroids := []float64{
		0, 0, // 0
		10, 10, // 1
		20, 20, // 2
	}

	idx, d := Nearest([]float64{1, 1}, centroids, 2)
	assert.Equal(t, 0, idx)
	assert.InDelta(t, math.Sqrt2, d, 1e-12)

	idx, _ = Nearest([]float64{19, 19}, centroids, 2)
	assert.Equal(t, 2, idx)

	t.Run("TieLowestIndex", func(t *testing.T) {
		// Equidistant from 0 and 1.
		idx, _ := Nearest([]float64{5, 5}, centroids, 2)
		assert.Equal(t, 0, idx)

		dup := []float64{3, 3, 3, 3}
		idx, d := Nearest([]float64{3, 3}, dup, 2)
		assert.Equal(t, 0, idx)
		assert.Zero(t, d)
	})
}
