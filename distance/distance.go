package distance

import (
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned by the checked variants when the two
// vectors differ in length.
type ErrDimensionMismatch struct {
	Left  int
	Right int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("distance: dimension mismatch: %d != %d", e.Left, e.Right)
}

// SquaredEuclidean returns the sum of squared coordinate differences.
// Assumes vectors are the same length (caller's responsibility).
func SquaredEuclidean(a, b []float64) float64 {
	b = b[:len(a)]

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Euclidean returns the Euclidean (L2) distance between a and b.
// Assumes vectors are the same length (caller's responsibility).
func Euclidean(a, b []float64) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// EuclideanChecked is Euclidean with a length check.
func EuclideanChecked(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &ErrDimensionMismatch{Left: len(a), Right: len(b)}
	}
	return Euclidean(a, b), nil
}

// Nearest returns the index of the centroid closest to vec and its distance.
// centroids is flattened (k * dim). The first minimum wins, so coincident
// centroids resolve to the lowest index.
func Nearest(vec, centroids []float64, dim int) (int, float64) {
	k := len(centroids) / dim

	best := 0
	minDist := Euclidean(vec, centroids[:dim])
	for j := 1; j < k; j++ {
		d := Euclidean(vec, centroids[j*dim:(j+1)*dim])
		if d < minDist {
			minDist = d
			best = j
		}
	}
	return best, minDist
}
