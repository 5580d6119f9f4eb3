package kmeans

import (
	"math"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    passes  prometheus.Counter
//	    latency prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordIteration(pass, changed int, inertia float64, d time.Duration) {
//	    p.passes.Inc()
//	    p.latency.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordIteration is called after each assignment pass.
	// changed is the number of points that moved, inertia the sum of
	// squared distances to the assigned centroids.
	RecordIteration(pass, changed int, inertia float64, duration time.Duration)

	// RecordEmptyCluster is called for every cluster left without members
	// by an update.
	RecordEmptyCluster(cluster int)

	// RecordRun is called once per Execute.
	// err is nil if the run reached a terminal status.
	RecordRun(status Status, iterations int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIteration(int, int, float64, time.Duration) {}
func (NoopMetricsCollector) RecordEmptyCluster(int)                           {}
func (NoopMetricsCollector) RecordRun(Status, int, time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PassCount       atomic.Int64
	PassTotalNanos  atomic.Int64
	PointsChanged   atomic.Int64
	EmptyClusters   atomic.Int64
	RunCount        atomic.Int64
	RunErrors       atomic.Int64
	ConvergedRuns   atomic.Int64
	CapReachedRuns  atomic.Int64
	RunTotalNanos   atomic.Int64
	lastInertiaBits atomic.Uint64
}

// RecordIteration implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIteration(_, changed int, inertia float64, duration time.Duration) {
	b.PassCount.Add(1)
	b.PassTotalNanos.Add(duration.Nanoseconds())
	b.PointsChanged.Add(int64(changed))
	b.lastInertiaBits.Store(math.Float64bits(inertia))
}

// RecordEmptyCluster implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEmptyCluster(int) {
	b.EmptyClusters.Add(1)
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(status Status, _ int, duration time.Duration, err error) {
	b.RunCount.Add(1)
	b.RunTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RunErrors.Add(1)
		return
	}
	switch status {
	case StatusConverged:
		b.ConvergedRuns.Add(1)
	case StatusMaxIterationsReached:
		b.CapReachedRuns.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PassCount:      b.PassCount.Load(),
		PassAvgNanos:   avg(b.PassTotalNanos.Load(), b.PassCount.Load()),
		PointsChanged:  b.PointsChanged.Load(),
		EmptyClusters:  b.EmptyClusters.Load(),
		RunCount:       b.RunCount.Load(),
		RunErrors:      b.RunErrors.Load(),
		ConvergedRuns:  b.ConvergedRuns.Load(),
		CapReachedRuns: b.CapReachedRuns.Load(),
		RunAvgNanos:    avg(b.RunTotalNanos.Load(), b.RunCount.Load()),
		LastInertia:    math.Float64frombits(b.lastInertiaBits.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PassCount      int64
	PassAvgNanos   int64
	PointsChanged  int64
	EmptyClusters  int64
	RunCount       int64
	RunErrors      int64
	ConvergedRuns  int64
	CapReachedRuns int64
	RunAvgNanos    int64
	LastInertia    float64
}
