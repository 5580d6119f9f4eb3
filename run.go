package kmeans

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/kmeans/distance"
	"github.com/hupe1980/kmeans/internal/conv"
	"github.com/hupe1980/kmeans/internal/pool"
)

// Unassigned marks a point that has not been through an assignment pass.
const Unassigned = -1

// Run owns the state of one clustering run: the read-only dataset, the
// centroids, the assignment vector and the worker pool. Independent runs
// share nothing and may execute concurrently. A Run itself is not safe for
// concurrent use.
type Run struct {
	points [][]float64
	dim    int
	k      int

	// centroids is flattened: cluster c occupies [c*dim, (c+1)*dim).
	centroids  []float64
	assignment []int
	// dist[i] is the distance from point i to its centroid in the last pass.
	dist []float64
	// members[c] lists the points of cluster c, rebuilt by every Update.
	members [][]int
	// changed[c] is the number of reassigned points in work chunk c.
	changed []int

	chunkSize int
	opts      options
	pool      *pool.WorkerPool

	status    Status
	iteration int
	passes    int
	empty     int
	elapsed   time.Duration
	closed    bool
}

// NewRun validates the dataset and seed centroids and prepares a run.
// points is not copied and must not be modified until the run is closed;
// seeds are copied. Setup errors are returned before any work starts.
func NewRun(points, seeds [][]float64, optFns ...Option) (*Run, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	dim, err := validate(points, seeds)
	if err != nil {
		return nil, err
	}

	wp, err := pool.New(opts.workers)
	if err != nil {
		return nil, err
	}

	n, k := len(points), len(seeds)

	centroids := make([]float64, k*dim)
	for c, s := range seeds {
		copy(centroids[c*dim:(c+1)*dim], s)
	}

	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = Unassigned
	}

	chunkSize := opts.chunkSize
	if chunkSize <= 0 {
		chunkSize = max((n+wp.Size()*4-1)/(wp.Size()*4), minChunkSize)
	}
	chunkSize = min(chunkSize, n)

	r := &Run{
		points:     points,
		dim:        dim,
		k:          k,
		centroids:  centroids,
		assignment: assignment,
		dist:       make([]float64, n),
		members:    make([][]int, k),
		changed:    make([]int, pool.Chunks(n, chunkSize)),
		chunkSize:  chunkSize,
		opts:       opts,
		pool:       wp,
		status:     StatusRunning,
		iteration:  1,
	}

	opts.logger.WithK(k).WithDimension(dim).WithCount(n).WithWorkers(wp.Size()).Debug("run prepared",
		"chunk_size", chunkSize,
		"chunks", len(r.changed),
		"max_iterations", opts.maxIterations,
		"empty_policy", opts.emptyPolicy.String(),
	)

	return r, nil
}

func validate(points, seeds [][]float64) (int, error) {
	n := len(points)
	if n == 0 {
		return 0, ErrEmptyDataset
	}

	if _, err := conv.IntToUint32(n); err != nil {
		return 0, fmt.Errorf("too many points: %w", err)
	}

	dim := len(points[0])
	if dim == 0 {
		return 0, &ErrInvalidDimension{Dimension: 0}
	}

	if k := len(seeds); k <= 0 || k > n {
		return 0, invalidClusterCount(k, n)
	}

	if err := checkVectors("point", points, dim); err != nil {
		return 0, err
	}
	if err := checkVectors("centroid", seeds, dim); err != nil {
		return 0, err
	}
	return dim, nil
}

func checkVectors(kind string, vecs [][]float64, dim int) error {
	for i, v := range vecs {
		if len(v) != dim {
			return &ErrDimensionMismatch{Kind: kind, Index: i, Expected: dim, Actual: len(v)}
		}
		for j, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return &ErrNonFinite{Kind: kind, Index: i, Coord: j, Value: x}
			}
		}
	}
	return nil
}

// Assign runs one assignment pass: every point is moved to its nearest
// centroid (lowest index on ties). Points are processed in chunks on the
// worker pool, and Assign returns only after all chunks finished. It
// returns the number of points whose cluster changed.
func (r *Run) Assign() (int, error) {
	if r.closed {
		return 0, ErrClosed
	}

	n := len(r.points)
	err := r.pool.ParallelRange(n, r.chunkSize, func(c, lo, hi int) {
		changed := 0
		for i := lo; i < hi; i++ {
			best, d := distance.Nearest(r.points[i], r.centroids, r.dim)
			if best != r.assignment[i] {
				r.assignment[i] = best
				changed++
			}
			r.dist[i] = d
		}
		r.changed[c] = changed
	})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, c := range r.changed {
		total += c
	}
	r.passes++

	return total, nil
}

// Update recomputes every centroid as the coordinate-wise mean of its
// members and returns the clusters that had none. Empty clusters are
// handled by the configured EmptyClusterPolicy; no centroid ever becomes
// NaN.
func (r *Run) Update() ([]int, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.passes == 0 {
		return nil, ErrNotAssigned
	}

	for c := range r.members {
		r.members[c] = r.members[c][:0]
	}
	for i, c := range r.assignment {
		r.members[c] = append(r.members[c], i)
	}

	var empty []int
	for c, idx := range r.members {
		if len(idx) == 0 {
			empty = append(empty, c)
			continue
		}

		centroid := r.centroids[c*r.dim : (c+1)*r.dim]
		clear(centroid)
		for _, i := range idx {
			for d, v := range r.points[i] {
				centroid[d] += v
			}
		}
		count := float64(len(idx))
		for d := range centroid {
			centroid[d] /= count
		}
	}

	if len(empty) > 0 && r.opts.emptyPolicy == ReseedFarthest {
		r.reseedFarthest(empty)
	}
	r.empty += len(empty)

	return empty, nil
}

// reseedFarthest moves each empty centroid onto the point that was farthest
// from its centroid in the last pass.
func (r *Run) reseedFarthest(empty []int) {
	used := make(map[int]struct{}, len(empty))
	for _, c := range empty {
		best := -1
		bestDist := -1.0
		for i, d := range r.dist {
			if _, ok := used[i]; ok {
				continue
			}
			if d > bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 || bestDist == 0 {
			// Every point sits on its centroid; nothing better to move to.
			continue
		}
		used[best] = struct{}{}
		copy(r.centroids[c*r.dim:(c+1)*r.dim], r.points[best])
	}
}

// Execute drives the convergence loop until no point changes cluster or
// the iteration cap is reached. Both outcomes are successful; the Status
// of the Result tells them apart.
//
// ctx is checked between iterations and before the run slot and working
// memory are reserved. If ctx is done, Execute returns ctx.Err() and no
// Result; the run stays at the last completed iteration. A pass that has
// started always finishes. If the resource controller's memory limit cannot
// hold the run's buffers, Execute fails with resource.ErrMemoryLimitExceeded
// before any pass.
//
// Calling Execute on a finished run returns its result again, including the
// elapsed time of the original execution.
func (r *Run) Execute(ctx context.Context) (*Result, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.status != StatusRunning {
		return r.Result(), nil
	}

	log := r.opts.logger.WithK(r.k).WithDimension(r.dim).WithCount(len(r.points))
	mc := r.opts.metricsCollector
	start := time.Now()

	fail := func(err error) (*Result, error) {
		elapsed := time.Since(start)
		mc.RecordRun(r.status, r.passes, elapsed, err)
		log.LogRun(ctx, r.status, r.passes, elapsed, err)
		return nil, err
	}

	rc := r.opts.resources
	if err := rc.AcquireRun(ctx); err != nil {
		return fail(err)
	}
	defer rc.ReleaseRun()

	mem := r.footprint()
	if err := rc.AcquireMemory(ctx, mem); err != nil {
		return fail(err)
	}
	defer rc.ReleaseMemory(mem)

	for r.status == StatusRunning {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		passStart := time.Now()
		changed, err := r.Assign()
		if err != nil {
			return fail(err)
		}
		inertia := r.Inertia()
		passTime := time.Since(passStart)

		mc.RecordIteration(r.passes, changed, inertia, passTime)
		log.LogIteration(ctx, r.passes, changed, inertia, passTime)

		if changed == 0 {
			r.status = StatusConverged
			break
		}

		empty, err := r.Update()
		if err != nil {
			return fail(err)
		}
		for _, c := range empty {
			mc.RecordEmptyCluster(c)
			log.LogEmptyCluster(ctx, r.passes, c, r.opts.emptyPolicy)
		}

		r.iteration++
		if r.iteration > r.opts.maxIterations {
			r.status = StatusMaxIterationsReached
		}
	}

	r.elapsed = time.Since(start)
	res := r.Result()

	mc.RecordRun(res.Status, res.Iterations, res.Elapsed, nil)
	log.LogRun(ctx, res.Status, res.Iterations, res.Elapsed, nil)

	return res, nil
}

// footprint estimates the bytes held by the run's working buffers.
func (r *Run) footprint() int64 {
	n := int64(len(r.points))
	return 8 * (3*n + int64(len(r.centroids)) + int64(len(r.changed)))
}

// Inertia returns the sum of squared distances from each point to the
// centroid it was assigned to in the last pass. Summation follows point
// order, so the value does not depend on the worker count.
func (r *Run) Inertia() float64 {
	var sum float64
	for _, d := range r.dist {
		sum += d * d
	}
	return sum
}

// Status returns the current loop state.
func (r *Run) Status() Status {
	return r.status
}

// Iterations returns the number of assignment passes executed so far.
func (r *Run) Iterations() int {
	return r.passes
}

// Assignment returns the current cluster of every point. The slice is
// owned by the run.
func (r *Run) Assignment() []int {
	return r.assignment
}

// Centroid returns a copy of centroid c.
func (r *Run) Centroid(c int) []float64 {
	out := make([]float64, r.dim)
	copy(out, r.centroids[c*r.dim:(c+1)*r.dim])
	return out
}

// Result snapshots the run state.
func (r *Run) Result() *Result {
	centroids := make([][]float64, r.k)
	for c := range centroids {
		centroids[c] = r.Centroid(c)
	}

	assignment := make([]int, len(r.assignment))
	copy(assignment, r.assignment)

	return &Result{
		Assignment:    assignment,
		Centroids:     centroids,
		Iterations:    r.passes,
		Status:        r.status,
		Inertia:       r.Inertia(),
		EmptyClusters: r.empty,
		Elapsed:       r.elapsed,
	}
}

// Close releases the worker pool. Calling Close more than once is a no-op.
func (r *Run) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.pool.Close()
	return nil
}

// Cluster validates the input, runs Lloyd's algorithm to completion and
// releases all resources.
func Cluster(ctx context.Context, points, seeds [][]float64, optFns ...Option) (*Result, error) {
	r, err := NewRun(points, seeds, optFns...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return r.Execute(ctx)
}
