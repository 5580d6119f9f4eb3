package kmeans

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kmeans/resource"
	"github.com/hupe1980/kmeans/seed"
	"github.com/hupe1980/kmeans/testutil"
)

var blobCenters = [][]float64{
	{0, 0, 0},
	{20, 20, 20},
	{-20, 20, -20},
}

func blobs(t *testing.T, perCluster int) ([][]float64, []int) {
	t.Helper()
	return testutil.NewRNG(42).Blobs(blobCenters, perCluster, 1.0)
}

func TestClusterBlobs(t *testing.T) {
	points, labels := blobs(t, 50)

	seeds, err := seed.Indices(points, 0, 1, 2)
	require.NoError(t, err)

	res, err := Cluster(context.Background(), points, seeds, WithWorkers(4))
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, res.Status)
	assert.True(t, res.Converged())
	assert.Equal(t, 3, res.K())
	assert.True(t, testutil.SamePartition(labels, res.Assignment))
	assert.Equal(t, []int{50, 50, 50}, res.Sizes())
	assert.InDelta(t, testutil.SSE(points, res.Centroids, res.Assignment), res.Inertia, 1e-6)
	assert.Zero(t, res.EmptyClusters)
	assert.Positive(t, res.Elapsed)

	for c, m := range res.Members() {
		assert.Equal(t, uint64(res.Sizes()[c]), m.GetCardinality())
		it := m.Iterator()
		for it.HasNext() {
			assert.Equal(t, c, res.Assignment[it.Next()])
		}
	}
}

func TestClusterDeterministic(t *testing.T) {
	points := testutil.NewRNG(7).UniformVectors(1000, 4)
	seeds, err := seed.Indices(points, 0, 10, 20, 30, 40, 50)
	require.NoError(t, err)

	first, err := Cluster(context.Background(), points, seeds, WithWorkers(4))
	require.NoError(t, err)

	for range 3 {
		res, err := Cluster(context.Background(), points, seeds, WithWorkers(4))
		require.NoError(t, err)
		assert.Equal(t, first.Assignment, res.Assignment)
		assert.Equal(t, first.Centroids, res.Centroids)
		assert.Equal(t, first.Iterations, res.Iterations)
		assert.Equal(t, first.Inertia, res.Inertia)
	}
}

func TestClusterWorkerCountInvariance(t *testing.T) {
	points := testutil.NewRNG(99).UniformVectors(2000, 5)
	seeds, err := seed.Stride(points, 8, 200)
	require.NoError(t, err)

	ref, err := Cluster(context.Background(), points, seeds, WithWorkers(1), WithChunkSize(len(points)))
	require.NoError(t, err)

	tests := []struct {
		name    string
		workers int
		chunk   int
	}{
		{"two workers", 2, 0},
		{"eight workers", 8, 0},
		{"single point chunks", 4, 1},
		{"odd chunks", 3, 7},
		{"oversized chunk", 8, 1 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Cluster(context.Background(), points, seeds,
				WithWorkers(tt.workers), WithChunkSize(tt.chunk))
			require.NoError(t, err)

			assert.Equal(t, ref.Assignment, res.Assignment)
			assert.Equal(t, ref.Centroids, res.Centroids)
			assert.Equal(t, ref.Iterations, res.Iterations)
			assert.Equal(t, ref.Status, res.Status)
		})
	}
}

func TestRunInertiaNonIncreasing(t *testing.T) {
	points := testutil.NewRNG(3).UniformVectors(500, 2)
	seeds, err := seed.Indices(points, 0, 1, 2, 3, 4)
	require.NoError(t, err)

	r, err := NewRun(points, seeds)
	require.NoError(t, err)
	defer r.Close()

	prev := math.Inf(1)
	for pass := 1; ; pass++ {
		changed, err := r.Assign()
		require.NoError(t, err)

		inertia := r.Inertia()
		assert.LessOrEqual(t, inertia, prev+1e-9, "pass %d", pass)
		prev = inertia

		if changed == 0 {
			break
		}
		require.Less(t, pass, 1000)

		_, err = r.Update()
		require.NoError(t, err)
	}
}

func TestClusterMaxIterations(t *testing.T) {
	points := testutil.NewRNG(5).UniformVectors(300, 2)
	seeds, err := seed.Indices(points, 0, 1, 2, 3)
	require.NoError(t, err)

	res, err := Cluster(context.Background(), points, seeds, WithMaxIterations(1))
	require.NoError(t, err)
	assert.Equal(t, StatusMaxIterationsReached, res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.False(t, res.Converged())

	full, err := Cluster(context.Background(), points, seeds)
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, full.Status)
	assert.Greater(t, full.Iterations, 1)

	capped, err := Cluster(context.Background(), points, seeds, WithMaxIterations(full.Iterations-1))
	require.NoError(t, err)
	assert.Equal(t, StatusMaxIterationsReached, capped.Status)
	assert.Equal(t, full.Iterations-1, capped.Iterations)
}

func TestClusterSingleCluster(t *testing.T) {
	points := [][]float64{{1, 2}, {3, 4}, {5, 9}}

	res, err := Cluster(context.Background(), points, [][]float64{{100, 100}})
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []int{0, 0, 0}, res.Assignment)
	assert.Equal(t, [][]float64{{3, 5}}, res.Centroids)
}

func TestClusterEveryPointOwnCluster(t *testing.T) {
	points := [][]float64{{0, 0}, {1, 0}, {0, 1}, {5, 5}, {9, 2}}
	seeds, err := seed.Indices(points, 0, 1, 2, 3, 4)
	require.NoError(t, err)

	res, err := Cluster(context.Background(), points, seeds)
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, res.Assignment)
	assert.Equal(t, points, res.Centroids)
	assert.Zero(t, res.Inertia)
}

func TestClusterTiesGoToLowestIndex(t *testing.T) {
	points := [][]float64{{0}, {2}}
	// Point 1 is equidistant from both seeds.
	res, err := Cluster(context.Background(), points, [][]float64{{1}, {3}}, WithMaxIterations(1))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, res.Assignment)
}

func TestClusterEmptyClusterKeepPrevious(t *testing.T) {
	points := [][]float64{{0}, {1}, {10}, {11}}
	seeds := [][]float64{{0}, {1}, {100}}

	mc := &BasicMetricsCollector{}
	res, err := Cluster(context.Background(), points, seeds, WithMetricsCollector(mc))
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, []int{0, 0, 1, 1}, res.Assignment)
	assert.Equal(t, [][]float64{{0.5}, {10.5}, {100}}, res.Centroids)
	assert.Equal(t, 2, res.EmptyClusters)
	assert.Equal(t, int64(2), mc.GetStats().EmptyClusters)
}

func TestClusterEmptyClusterReseedFarthest(t *testing.T) {
	points := [][]float64{{0}, {1}, {10}, {11}}
	seeds := [][]float64{{0}, {1}, {100}}

	res, err := Cluster(context.Background(), points, seeds, WithEmptyClusterPolicy(ReseedFarthest))
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, []int{0, 1, 2, 2}, res.Assignment)
	assert.Equal(t, []int{1, 1, 2}, res.Sizes())
	assert.Equal(t, [][]float64{{0}, {1}, {10.5}}, res.Centroids)
	assert.Equal(t, 2, res.EmptyClusters)
	assert.Equal(t, 4, res.Iterations)
}

func TestRunCentroidsStayFinite(t *testing.T) {
	// Two seeds coincide, so the second never wins a point.
	points := [][]float64{{1, 1}, {2, 2}, {3, 3}}
	seeds := [][]float64{{1, 1}, {1, 1}}

	for _, policy := range []EmptyClusterPolicy{KeepPrevious, ReseedFarthest} {
		t.Run(policy.String(), func(t *testing.T) {
			res, err := Cluster(context.Background(), points, seeds, WithEmptyClusterPolicy(policy))
			require.NoError(t, err)
			for _, c := range res.Centroids {
				for _, v := range c {
					assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
				}
			}
		})
	}
}

func TestRunAssignAfterConvergence(t *testing.T) {
	points, _ := blobs(t, 20)
	seeds, err := seed.Indices(points, 0, 1, 2)
	require.NoError(t, err)

	r, err := NewRun(points, seeds, WithWorkers(3))
	require.NoError(t, err)
	defer r.Close()

	res, err := r.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusConverged, res.Status)

	changed, err := r.Assign()
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.Equal(t, res.Assignment, r.Assignment())

	// A finished run reports the same outcome again.
	again, err := r.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Assignment, again.Assignment)
	assert.Positive(t, res.Elapsed)
	assert.Equal(t, res.Elapsed, again.Elapsed)
	assert.Equal(t, res.Elapsed, r.Result().Elapsed)
	assert.Equal(t, StatusConverged, r.Status())
}

func TestRunStepByStep(t *testing.T) {
	points := [][]float64{{0}, {1}, {10}, {11}}

	r, err := NewRun(points, [][]float64{{0}, {11}})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []int{Unassigned, Unassigned, Unassigned, Unassigned}, r.Assignment())
	assert.Equal(t, StatusRunning, r.Status())

	_, err = r.Update()
	assert.ErrorIs(t, err, ErrNotAssigned)

	changed, err := r.Assign()
	require.NoError(t, err)
	assert.Equal(t, 4, changed)
	assert.Equal(t, 1, r.Iterations())

	empty, err := r.Update()
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, []float64{0.5}, r.Centroid(0))
	assert.Equal(t, []float64{10.5}, r.Centroid(1))

	changed, err = r.Assign()
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestNewRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		points [][]float64
		seeds  [][]float64
		check  func(t *testing.T, err error)
	}{
		{
			name:  "empty dataset",
			seeds: [][]float64{{0}},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyDataset) },
		},
		{
			name:   "zero dimension",
			points: [][]float64{{}},
			seeds:  [][]float64{{}},
			check: func(t *testing.T, err error) {
				var e *ErrInvalidDimension
				assert.ErrorAs(t, err, &e)
			},
		},
		{
			name:   "no seeds",
			points: [][]float64{{1}},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidClusterCount) },
		},
		{
			name:   "more seeds than points",
			points: [][]float64{{1}},
			seeds:  [][]float64{{1}, {2}},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidClusterCount) },
		},
		{
			name:   "ragged points",
			points: [][]float64{{1, 2}, {3}},
			seeds:  [][]float64{{1, 2}},
			check: func(t *testing.T, err error) {
				var e *ErrDimensionMismatch
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "point", e.Kind)
				assert.Equal(t, 1, e.Index)
				assert.Equal(t, 2, e.Expected)
				assert.Equal(t, 1, e.Actual)
			},
		},
		{
			name:   "seed dimension",
			points: [][]float64{{1, 2}, {3, 4}},
			seeds:  [][]float64{{1, 2, 3}},
			check: func(t *testing.T, err error) {
				var e *ErrDimensionMismatch
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "centroid", e.Kind)
			},
		},
		{
			name:   "nan point",
			points: [][]float64{{1, math.NaN()}},
			seeds:  [][]float64{{1, 2}},
			check: func(t *testing.T, err error) {
				var e *ErrNonFinite
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "point", e.Kind)
				assert.Equal(t, 1, e.Coord)
			},
		},
		{
			name:   "infinite seed",
			points: [][]float64{{1, 2}},
			seeds:  [][]float64{{math.Inf(-1), 2}},
			check: func(t *testing.T, err error) {
				var e *ErrNonFinite
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "centroid", e.Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRun(tt.points, tt.seeds)
			require.Error(t, err)
			tt.check(t, err)

			_, err = Cluster(context.Background(), tt.points, tt.seeds)
			require.Error(t, err)
		})
	}
}

func TestRunClosed(t *testing.T) {
	r, err := NewRun([][]float64{{1}, {2}}, [][]float64{{1}})
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Assign()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Update()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Execute(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRunExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mc := &BasicMetricsCollector{}
	res, err := Cluster(ctx, [][]float64{{1}, {2}}, [][]float64{{1}}, WithMetricsCollector(mc))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.RunErrors)
	assert.Zero(t, stats.PassCount)
}

// cancelAfterPass cancels a context once the given pass was recorded.
type cancelAfterPass struct {
	NoopMetricsCollector
	pass   int
	cancel context.CancelFunc
}

func (c *cancelAfterPass) RecordIteration(pass, _ int, _ float64, _ time.Duration) {
	if pass == c.pass {
		c.cancel()
	}
}

func TestRunExecuteCanceledBetweenIterations(t *testing.T) {
	points, _ := blobs(t, 20)
	seeds, err := seed.Indices(points, 0, 1, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := NewRun(points, seeds, WithMetricsCollector(&cancelAfterPass{pass: 1, cancel: cancel}))
	require.NoError(t, err)
	defer r.Close()

	res, err := r.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)

	// The pass in flight finished; the loop stopped before the next one.
	assert.Equal(t, 1, r.Iterations())
	assert.Equal(t, StatusRunning, r.Status())
}

func TestRunResourceController(t *testing.T) {
	points, _ := blobs(t, 10)
	seeds, err := seed.Indices(points, 0, 1, 2)
	require.NoError(t, err)

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:  1 << 20,
		MaxConcurrentRuns: 1,
	})

	_, err = Cluster(context.Background(), points, seeds, WithResourceController(rc))
	require.NoError(t, err)
	assert.Zero(t, rc.MemoryUsage())
	assert.True(t, rc.TryAcquireRun(), "run slot is released")
	rc.ReleaseRun()

	// A held slot blocks the next run until ctx expires.
	require.NoError(t, rc.AcquireRun(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = Cluster(ctx, points, seeds, WithResourceController(rc))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	rc.ReleaseRun()

	// Working buffers larger than the memory budget fail at once.
	small := resource.NewController(resource.Config{MemoryLimitBytes: 64})

	mc := &BasicMetricsCollector{}
	_, err = Cluster(context.Background(), points, seeds, WithResourceController(small), WithMetricsCollector(mc))
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Zero(t, small.MemoryUsage())
	assert.Zero(t, mc.GetStats().PassCount)
	assert.Equal(t, int64(1), mc.GetStats().RunErrors)
}

func TestRunMemoryHeldElsewhere(t *testing.T) {
	points, _ := blobs(t, 10)
	seeds, err := seed.Indices(points, 0, 1, 2)
	require.NoError(t, err)

	r, err := NewRun(points, seeds)
	require.NoError(t, err)
	need := r.footprint()
	require.NoError(t, r.Close())

	// Each reservation fits alone, together they do not.
	rc := resource.NewController(resource.Config{MemoryLimitBytes: need + need/2})
	require.NoError(t, rc.AcquireMemory(context.Background(), need))

	_, err = Cluster(context.Background(), points, seeds, WithResourceController(rc))
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, need, rc.MemoryUsage())

	rc.ReleaseMemory(need)
	res, err := Cluster(context.Background(), points, seeds, WithResourceController(rc))
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, res.Status)
	assert.Zero(t, rc.MemoryUsage())
}

func TestRunMetricsCollector(t *testing.T) {
	points, _ := blobs(t, 10)
	seeds, err := seed.Indices(points, 0, 1, 2)
	require.NoError(t, err)

	mc := &BasicMetricsCollector{}
	res, err := Cluster(context.Background(), points, seeds, WithMetricsCollector(mc))
	require.NoError(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(res.Iterations), stats.PassCount)
	assert.Equal(t, int64(1), stats.RunCount)
	assert.Equal(t, int64(1), stats.ConvergedRuns)
	assert.Zero(t, stats.RunErrors)
	assert.Equal(t, res.Inertia, stats.LastInertia)
	assert.GreaterOrEqual(t, stats.PointsChanged, int64(len(points)))
}

func TestRunLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	points := [][]float64{{0}, {1}, {10}, {11}}
	_, err := Cluster(context.Background(), points, [][]float64{{0}, {1}, {100}}, WithLogger(logger))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"run prepared"`)
	assert.Contains(t, out, `"msg":"assignment pass completed"`)
	assert.Contains(t, out, `"msg":"empty cluster"`)
	assert.Contains(t, out, `"msg":"clustering completed"`)
	assert.Contains(t, out, `"status":"Converged"`)
}
