package kmeans

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when clustering is requested on zero points.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrInvalidClusterCount is returned when k is not in [1, n].
	ErrInvalidClusterCount = errors.New("invalid cluster count")

	// ErrNotAssigned is returned by Update before the first assignment pass.
	ErrNotAssigned = errors.New("assignment pass has not run")

	// ErrClosed is returned when a closed Run is used.
	ErrClosed = errors.New("run is closed")
)

// ErrDimensionMismatch indicates a point or seed centroid whose length
// differs from the run's dimension.
type ErrDimensionMismatch struct {
	// Kind is "point" or "centroid".
	Kind     string
	Index    int
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: %s %d: expected %d, got %d", e.Kind, e.Index, e.Expected, e.Actual)
}

// ErrInvalidDimension indicates a zero-length first point.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrNonFinite indicates a NaN or infinite coordinate.
type ErrNonFinite struct {
	Kind  string
	Index int
	Coord int
	Value float64
}

func (e *ErrNonFinite) Error() string {
	return fmt.Sprintf("non-finite value %v at %s %d, coordinate %d", e.Value, e.Kind, e.Index, e.Coord)
}

func invalidClusterCount(k, n int) error {
	return fmt.Errorf("%w: k=%d, n=%d", ErrInvalidClusterCount, k, n)
}
