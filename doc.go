// Package kmeans clusters a fixed set of points into k groups with Lloyd's
// algorithm, computing the nearest centroid of every point in parallel.
//
// # Quick Start
//
//	points := table.Points                     // [][]float64, all of one dimension
//	seeds, _ := seed.Stride(points, 3, 100)    // or seed.PlusPlus / seed.Random
//
//	res, err := kmeans.Cluster(ctx, points, seeds,
//	    kmeans.WithWorkers(8),
//	    kmeans.WithMaxIterations(10000),
//	)
//	if err != nil { ... }                      // setup errors only
//
//	res.Assignment  // point -> cluster
//	res.Centroids   // cluster -> mean
//	res.Status      // Converged or MaxIterationsReached
//
// # Algorithm
//
// Every iteration runs two phases separated by a full barrier:
//
//   - Assignment: points are split into contiguous chunks that the worker
//     pool processes concurrently. Each point moves to the centroid at the
//     smallest Euclidean distance; the lowest cluster index wins ties.
//   - Update: on the calling goroutine, every centroid becomes the mean of
//     its members.
//
// The loop stops when an assignment pass moves no point (Converged) or
// after the configured number of passes (MaxIterationsReached). Centroids
// are read-only during the assignment phase and each chunk writes a
// disjoint range of the assignment, so the result does not depend on the
// number of workers or the chunk size.
//
// # Empty Clusters
//
// A cluster that receives no points keeps its previous centroid
// (KeepPrevious, the default) or is moved onto the worst-served point
// (ReseedFarthest). Both are reported through the logger and the
// MetricsCollector.
//
// # Step-wise Use
//
// NewRun exposes the phases individually:
//
//	run, _ := kmeans.NewRun(points, seeds)
//	defer run.Close()
//
//	changed, _ := run.Assign()
//	empty, _ := run.Update()
package kmeans
