// Package seed chooses initial centroids for a clustering run.
//
// Every policy returns fresh copies of the chosen points, so the seeds can be
// handed to kmeans.NewRun without aliasing the dataset.
package seed

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/hupe1980/kmeans/distance"
)

var (
	// ErrInvalidK is returned when k is not in [1, len(points)].
	ErrInvalidK = errors.New("seed: k out of range")

	// ErrIndexOutOfRange is returned when a requested seed index does not
	// name a point.
	ErrIndexOutOfRange = errors.New("seed: index out of range")
)

// Policy names a seeding strategy.
type Policy string

const (
	PolicyStride   Policy = "stride"
	PolicyIndices  Policy = "indices"
	PolicyRandom   Policy = "random"
	PolicyPlusPlus Policy = "plusplus"
)

func checkK(n, k int) error {
	if k <= 0 || k > n {
		return fmt.Errorf("%w: k=%d, n=%d", ErrInvalidK, k, n)
	}
	return nil
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Indices returns copies of the points at idx, in order.
func Indices(points [][]float64, idx ...int) ([][]float64, error) {
	if err := checkK(len(points), len(idx)); err != nil {
		return nil, err
	}

	seeds := make([][]float64, len(idx))
	for c, i := range idx {
		if i < 0 || i >= len(points) {
			return nil, fmt.Errorf("%w: %d (n=%d)", ErrIndexOutOfRange, i, len(points))
		}
		seeds[c] = clone(points[i])
	}
	return seeds, nil
}

// Stride picks points step*1, step*2, ..., step*k. It is deterministic and
// reproducible, at the price of biasing toward the file order of the data.
func Stride(points [][]float64, k, step int) ([][]float64, error) {
	if err := checkK(len(points), k); err != nil {
		return nil, err
	}
	if step <= 0 {
		return nil, fmt.Errorf("seed: stride must be positive, got %d", step)
	}

	idx := make([]int, k)
	for c := range idx {
		idx[c] = step * (c + 1)
	}
	return Indices(points, idx...)
}

// Random picks k distinct points uniformly using rng.
func Random(points [][]float64, k int, rng *rand.Rand) ([][]float64, error) {
	if err := checkK(len(points), k); err != nil {
		return nil, err
	}
	return Indices(points, rng.Perm(len(points))[:k]...)
}

// PlusPlus picks seeds with k-means++: the first uniformly, each further one
// with probability proportional to its squared distance to the nearest seed
// chosen so far.
func PlusPlus(points [][]float64, k int, rng *rand.Rand) ([][]float64, error) {
	n := len(points)
	if err := checkK(n, k); err != nil {
		return nil, err
	}

	idx := make([]int, 0, k)
	idx = append(idx, rng.Intn(n))

	// minDist[j] is the squared distance of point j to its nearest seed.
	minDist := make([]float64, n)
	first := points[idx[0]]
	for j, p := range points {
		minDist[j] = distance.SquaredEuclidean(p, first)
	}

	for len(idx) < k {
		total := 0.0
		for _, d := range minDist {
			total += d
		}

		chosen := -1
		if total > 0 {
			threshold := rng.Float64() * total
			cumsum := 0.0
			for j, d := range minDist {
				cumsum += d
				if d > 0 && cumsum >= threshold {
					chosen = j
					break
				}
			}
		}
		if chosen < 0 {
			// All remaining mass is zero: take the first point not yet used.
			chosen = firstUnused(n, idx)
		}

		idx = append(idx, chosen)
		seed := points[chosen]
		for j, p := range points {
			if d := distance.SquaredEuclidean(p, seed); d < minDist[j] {
				minDist[j] = d
			}
		}
	}

	return Indices(points, idx...)
}

func firstUnused(n int, used []int) int {
	seen := make(map[int]struct{}, len(used))
	for _, i := range used {
		seen[i] = struct{}{}
	}
	for i := 0; i < n; i++ {
		if _, ok := seen[i]; !ok {
			return i
		}
	}
	return 0
}
