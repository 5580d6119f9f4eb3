package kmeans

import (
	"github.com/hupe1980/kmeans/resource"
)

// DefaultMaxIterations caps the number of assignment passes when
// WithMaxIterations is not given.
const DefaultMaxIterations = 10000

// minChunkSize keeps automatically sized work chunks from degenerating into
// per-point tasks on small datasets.
const minChunkSize = 64

type options struct {
	workers          int
	chunkSize        int
	maxIterations    int
	emptyPolicy      EmptyClusterPolicy
	logger           *Logger
	metricsCollector MetricsCollector
	resources        *resource.Controller
}

func defaultOptions() options {
	return options{
		maxIterations:    DefaultMaxIterations,
		emptyPolicy:      KeepPrevious,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
}

// Option configures a Run.
type Option func(*options)

// WithWorkers sets the size of the worker pool used by the assignment
// phase. If workers <= 0, runtime.GOMAXPROCS(0) is used.
func WithWorkers(workers int) Option {
	return func(o *options) {
		o.workers = workers
	}
}

// WithChunkSize sets the number of points per work chunk.
// If size <= 0, the chunk size is derived from the dataset size and the
// worker count.
func WithChunkSize(size int) Option {
	return func(o *options) {
		o.chunkSize = size
	}
}

// WithMaxIterations caps the number of assignment passes.
// Values <= 0 select DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = DefaultMaxIterations
		}
		o.maxIterations = n
	}
}

// WithEmptyClusterPolicy selects how clusters that lose all members are
// handled. The default is KeepPrevious.
func WithEmptyClusterPolicy(p EmptyClusterPolicy) Option {
	return func(o *options) {
		o.emptyPolicy = p
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector. If nil is passed,
// NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResourceController makes Execute take a run slot and account its
// working memory against rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}
