package kmeans

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// Result is the outcome of a clustering run.
type Result struct {
	// Assignment maps point index to cluster index.
	Assignment []int
	// Centroids holds one vector per cluster, indexed by cluster id.
	Centroids [][]float64
	// Iterations is the number of assignment passes executed.
	Iterations int
	// Status is StatusConverged or StatusMaxIterationsReached.
	Status Status
	// Inertia is the sum of squared distances of the last assignment pass.
	Inertia float64
	// EmptyClusters counts empty-cluster events over the whole run.
	EmptyClusters int
	// Elapsed is the wall-clock time of Execute.
	Elapsed time.Duration
}

// Converged reports whether the run stopped at a fixed point.
func (r *Result) Converged() bool {
	return r.Status == StatusConverged
}

// K returns the number of clusters.
func (r *Result) K() int {
	return len(r.Centroids)
}

// Sizes returns the number of points in each cluster.
func (r *Result) Sizes() []int {
	sizes := make([]int, len(r.Centroids))
	for _, c := range r.Assignment {
		if c >= 0 {
			sizes[c]++
		}
	}
	return sizes
}

// Members returns the point indices of each cluster as bitmaps.
func (r *Result) Members() []*roaring.Bitmap {
	members := make([]*roaring.Bitmap, len(r.Centroids))
	for c := range members {
		members[c] = roaring.New()
	}
	for i, c := range r.Assignment {
		if c >= 0 {
			members[c].Add(uint32(i))
		}
	}
	for _, m := range members {
		m.RunOptimize()
	}
	return members
}
