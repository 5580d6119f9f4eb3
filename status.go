package kmeans

import (
	"fmt"
	"strings"
)

// Status is the state of the convergence loop.
type Status int

const (
	// StatusRunning means the loop has not reached a terminal state.
	StatusRunning Status = iota
	// StatusConverged means an assignment pass changed no point.
	StatusConverged
	// StatusMaxIterationsReached means the iteration cap stopped the loop.
	// The result is still valid.
	StatusMaxIterationsReached
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusConverged:
		return "Converged"
	case StatusMaxIterationsReached:
		return "MaxIterationsReached"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// EmptyClusterPolicy decides what happens to the centroid of a cluster that
// received no points in the last assignment pass.
type EmptyClusterPolicy int

const (
	// KeepPrevious leaves the centroid where it was.
	KeepPrevious EmptyClusterPolicy = iota
	// ReseedFarthest moves the centroid onto the point farthest from its
	// own centroid in the last pass (lowest index on ties). A point is used
	// at most once per update.
	ReseedFarthest
)

func (p EmptyClusterPolicy) String() string {
	switch p {
	case KeepPrevious:
		return "keep"
	case ReseedFarthest:
		return "reseed-farthest"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// ParseEmptyClusterPolicy parses the String form of a policy.
func ParseEmptyClusterPolicy(s string) (EmptyClusterPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return KeepPrevious, nil
	case "reseed-farthest", "reseed":
		return ReseedFarthest, nil
	default:
		return 0, fmt.Errorf("unknown empty cluster policy %q", s)
	}
}
