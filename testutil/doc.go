// Package testutil provides testing utilities for clustering.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	pts := rng.UniformVectors(1000, 4)             // uniform [0, 1)
//	pts, labels := rng.Blobs(centers, 50, 0.1)     // Gaussian blobs
//
// # Reference Results
//
//	sse := testutil.SSE(points, centroids, assignment)
//	ok := testutil.SamePartition(a, b)
package testutil
