// Package config holds the run file format of the kmeans command.
//
// A run file is TOML:
//
//	[dataset]
//	source = "local"
//	path   = "testdata/iris.csv"
//
//	[seed]
//	policy = "stride"
//	k      = 3
//	step   = 100
//
//	[run]
//	workers        = 8
//	max_iterations = 10000
//
//	[log]
//	level  = "info"
//	format = "text"
//
// Every key is optional; missing keys keep the values of Default.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/hupe1980/kmeans"
	"github.com/hupe1980/kmeans/dataset"
	"github.com/hupe1980/kmeans/resource"
	"github.com/hupe1980/kmeans/seed"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

// Dataset sources.
const (
	SourceLocal = "local"
	SourceMinIO = "minio"
	SourceS3    = "s3"
)

// Config is the decoded run file.
type Config struct {
	Dataset  Dataset  `toml:"dataset"`
	Seed     Seed     `toml:"seed"`
	Run      Run      `toml:"run"`
	Log      Log      `toml:"log"`
	Resource Resource `toml:"resource"`
}

// Dataset locates and describes the input table.
type Dataset struct {
	Source       string `toml:"source"`
	Path         string `toml:"path"`
	Comma        string `toml:"comma"`
	HasHeader    bool   `toml:"has_header"`
	SkipLeading  int    `toml:"skip_leading"`
	SkipTrailing int    `toml:"skip_trailing"`
	Compression  string `toml:"compression"`

	// Remote sources.
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	UseSSL          bool   `toml:"use_ssl"`
}

// Seed selects the initial centroids. K == 0 means "ask the operator".
type Seed struct {
	Policy  string `toml:"policy"`
	K       int    `toml:"k"`
	Step    int    `toml:"step"`
	Indices []int  `toml:"indices"`
	Random  int64  `toml:"random_seed"`
}

// Run configures the clustering loop.
type Run struct {
	Workers       int    `toml:"workers"`
	ChunkSize     int    `toml:"chunk_size"`
	MaxIterations int    `toml:"max_iterations"`
	EmptyPolicy   string `toml:"empty_policy"`
	Output        string `toml:"output"`
}

// Log configures the command's logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Resource bounds what a run may consume. Zero means unlimited.
type Resource struct {
	MemoryLimitBytes   int64 `toml:"memory_limit_bytes"`
	MaxConcurrentRuns  int64 `toml:"max_concurrent_runs"`
	IOLimitBytesPerSec int64 `toml:"io_limit_bytes_per_sec"`
}

// Default returns the reference setup: Iris-style CSV from local disk,
// stride seeding with step 100 and the default iteration cap.
func Default() *Config {
	d := dataset.DefaultOptions()
	return &Config{
		Dataset: Dataset{
			Source:       SourceLocal,
			Comma:        string(d.Comma),
			HasHeader:    d.HasHeader,
			SkipLeading:  d.SkipLeading,
			SkipTrailing: d.SkipTrailing,
			Compression:  d.Compression.String(),
			UseSSL:       true,
		},
		Seed: Seed{
			Policy: string(seed.PolicyStride),
			Step:   100,
			Random: 1,
		},
		Run: Run{
			MaxIterations: kmeans.DefaultMaxIterations,
			EmptyPolicy:   kmeans.KeepPrevious.String(),
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load decodes the TOML file at path on top of Default. Unknown keys are
// rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// Decode parses TOML text on top of Default.
func Decode(data string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the configuration for consistency. It does not touch the
// dataset, so K is only checked against the seed indices.
func (c *Config) Validate() error {
	d := c.Dataset
	switch d.Source {
	case SourceLocal:
	case SourceMinIO, SourceS3:
		if d.Bucket == "" {
			return invalid("dataset.bucket is required for source %q", d.Source)
		}
		if d.Source == SourceMinIO && d.Endpoint == "" {
			return invalid("dataset.endpoint is required for source %q", d.Source)
		}
	default:
		return invalid("unknown dataset.source %q", d.Source)
	}
	if d.Path == "" {
		return invalid("dataset.path is required")
	}
	if len([]rune(d.Comma)) != 1 {
		return invalid("dataset.comma must be a single character, got %q", d.Comma)
	}
	if d.SkipLeading < 0 || d.SkipTrailing < 0 {
		return invalid("dataset.skip_leading and dataset.skip_trailing must not be negative")
	}
	if _, err := dataset.ParseCompression(d.Compression); err != nil {
		return invalid("%v", err)
	}

	s := c.Seed
	if s.K < 0 {
		return invalid("seed.k must not be negative, got %d", s.K)
	}
	switch seed.Policy(s.Policy) {
	case seed.PolicyStride:
		if s.Step <= 0 {
			return invalid("seed.step must be positive, got %d", s.Step)
		}
	case seed.PolicyIndices:
		if len(s.Indices) == 0 {
			return invalid("seed.indices is required for policy %q", s.Policy)
		}
		if s.K != 0 && s.K != len(s.Indices) {
			return invalid("seed.k=%d does not match %d seed.indices", s.K, len(s.Indices))
		}
		if slices.ContainsFunc(s.Indices, func(i int) bool { return i < 0 }) {
			return invalid("seed.indices must not be negative")
		}
	case seed.PolicyRandom, seed.PolicyPlusPlus:
	default:
		return invalid("unknown seed.policy %q", s.Policy)
	}

	r := c.Run
	if r.Workers < 0 || r.ChunkSize < 0 || r.MaxIterations < 0 {
		return invalid("run.workers, run.chunk_size and run.max_iterations must not be negative")
	}
	if _, err := kmeans.ParseEmptyClusterPolicy(r.EmptyPolicy); err != nil {
		return invalid("%v", err)
	}

	if _, err := c.SlogLevel(); err != nil {
		return invalid("%v", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("unknown log.format %q", c.Log.Format)
	}

	res := c.Resource
	if res.MemoryLimitBytes < 0 || res.MaxConcurrentRuns < 0 || res.IOLimitBytesPerSec < 0 {
		return invalid("resource limits must not be negative")
	}

	return nil
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// DatasetOptions converts the [dataset] table. Call Validate first.
func (c *Config) DatasetOptions(rc *resource.Controller) dataset.Options {
	comp, _ := dataset.ParseCompression(c.Dataset.Compression)
	return dataset.Options{
		Comma:        []rune(c.Dataset.Comma)[0],
		HasHeader:    c.Dataset.HasHeader,
		SkipLeading:  c.Dataset.SkipLeading,
		SkipTrailing: c.Dataset.SkipTrailing,
		Compression:  comp,
		Resources:    rc,
	}
}

// ResourceConfig converts the [resource] table.
func (c *Config) ResourceConfig() resource.Config {
	return resource.Config{
		MemoryLimitBytes:   c.Resource.MemoryLimitBytes,
		MaxConcurrentRuns:  c.Resource.MaxConcurrentRuns,
		IOLimitBytesPerSec: c.Resource.IOLimitBytesPerSec,
	}
}

// RunOptions converts the [run] table into clustering options. Call
// Validate first.
func (c *Config) RunOptions() []kmeans.Option {
	policy, _ := kmeans.ParseEmptyClusterPolicy(c.Run.EmptyPolicy)
	return []kmeans.Option{
		kmeans.WithWorkers(c.Run.Workers),
		kmeans.WithChunkSize(c.Run.ChunkSize),
		kmeans.WithMaxIterations(c.Run.MaxIterations),
		kmeans.WithEmptyClusterPolicy(policy),
	}
}
