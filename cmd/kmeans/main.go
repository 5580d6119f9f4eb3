// Command kmeans clusters the rows of a delimited text file with Lloyd's
// algorithm and reports how long the run took.
//
// Usage:
//
//	kmeans -data iris.csv -k 3
//	kmeans -config run.toml -workers 8 -out assignment.csv
//	kmeans -source minio -endpoint localhost:9000 -bucket datasets -data iris.csv.gz
//
// Flags override values from the run file. When K is given neither way the
// command asks for it on stdin.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/kmeans"
	"github.com/hupe1980/kmeans/blobstore"
	blobminio "github.com/hupe1980/kmeans/blobstore/minio"
	blobs3 "github.com/hupe1980/kmeans/blobstore/s3"
	"github.com/hupe1980/kmeans/config"
	"github.com/hupe1980/kmeans/dataset"
	"github.com/hupe1980/kmeans/internal/fs"
	"github.com/hupe1980/kmeans/resource"
	"github.com/hupe1980/kmeans/seed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "kmeans: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := parseConfig(args, stderr)
	if err != nil {
		return err
	}

	lvl, _ := cfg.SlogLevel()
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	var logger *kmeans.Logger
	if cfg.Log.Format == "json" {
		logger = kmeans.NewLogger(slog.NewJSONHandler(stderr, handlerOpts))
	} else {
		logger = kmeans.NewLogger(slog.NewTextHandler(stderr, handlerOpts))
	}

	rc := resource.NewController(cfg.ResourceConfig())

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	tbl, err := dataset.Load(ctx, store, cfg.Dataset.Path, cfg.DatasetOptions(rc))
	if err != nil {
		return err
	}
	defer tbl.Release()

	logger.WithCount(tbl.Len()).WithDimension(tbl.Dim).Info("dataset loaded",
		"source", cfg.Dataset.Source,
		"path", cfg.Dataset.Path,
	)

	k := cfg.Seed.K
	if seed.Policy(cfg.Seed.Policy) == seed.PolicyIndices {
		k = len(cfg.Seed.Indices)
	}
	if k == 0 {
		if k, err = promptK(stdin, stdout); err != nil {
			return err
		}
	}

	seeds, err := chooseSeeds(cfg, tbl.Points, k)
	if err != nil {
		return err
	}

	mc := &kmeans.BasicMetricsCollector{}
	opts := append(cfg.RunOptions(),
		kmeans.WithLogger(logger),
		kmeans.WithMetricsCollector(mc),
		kmeans.WithResourceController(rc),
	)

	// The table stays reserved while the run holds its own buffers.
	res, err := kmeans.Cluster(ctx, tbl.Points, seeds, opts...)
	if err != nil {
		if errors.Is(err, resource.ErrMemoryLimitExceeded) {
			return fmt.Errorf("dataset already holds %d bytes: %w", tbl.Bytes(), err)
		}
		return err
	}

	printSummary(stdout, res)

	stats := mc.GetStats()
	logger.Debug("run stats",
		"passes", stats.PassCount,
		"points_changed", stats.PointsChanged,
		"empty_clusters", stats.EmptyClusters,
	)

	if cfg.Run.Output != "" {
		if err := writeAssignment(fs.Default, cfg.Run.Output, res.Assignment); err != nil {
			return err
		}
	}

	return nil
}

// parseConfig loads the optional run file and applies the flags that were
// set explicitly on the command line.
func parseConfig(args []string, stderr io.Writer) (*config.Config, error) {
	fs := flag.NewFlagSet("kmeans", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath  = fs.String("config", "", "TOML run file")
		data        = fs.String("data", "", "dataset path or object key")
		source      = fs.String("source", "", "dataset source: local, minio or s3")
		bucket      = fs.String("bucket", "", "bucket for remote sources")
		prefix      = fs.String("prefix", "", "key prefix for remote sources")
		endpoint    = fs.String("endpoint", "", "endpoint for remote sources")
		region      = fs.String("region", "", "region for s3")
		compression = fs.String("compression", "", "auto, none, gzip, zstd or lz4")
		k           = fs.Int("k", 0, "number of clusters (prompted when 0)")
		policy      = fs.String("seed", "", "seeding policy: stride, indices, random or plusplus")
		step        = fs.Int("step", 0, "row step for stride seeding")
		indices     = fs.String("indices", "", "comma separated row indices for indices seeding")
		randomSeed  = fs.Int64("random-seed", 0, "RNG seed for random and plusplus seeding")
		workers     = fs.Int("workers", 0, "worker pool size (GOMAXPROCS when 0)")
		chunk       = fs.Int("chunk", 0, "points per work chunk (derived when 0)")
		maxIter     = fs.Int("max-iter", 0, "iteration cap")
		empty       = fs.String("empty", "", "empty cluster policy: keep or reseed-farthest")
		out         = fs.String("out", "", "write the assignment as CSV to this file")
		logLevel    = fs.String("log-level", "", "debug, info, warn or error")
		logFormat   = fs.String("log-format", "", "text or json")
	)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.Dataset.Path = *data
		case "source":
			cfg.Dataset.Source = *source
		case "bucket":
			cfg.Dataset.Bucket = *bucket
		case "prefix":
			cfg.Dataset.Prefix = *prefix
		case "endpoint":
			cfg.Dataset.Endpoint = *endpoint
		case "region":
			cfg.Dataset.Region = *region
		case "compression":
			cfg.Dataset.Compression = *compression
		case "k":
			cfg.Seed.K = *k
		case "seed":
			cfg.Seed.Policy = *policy
		case "step":
			cfg.Seed.Step = *step
		case "indices":
			idx, err := parseIndices(*indices)
			if err != nil {
				parseErr = err
				return
			}
			cfg.Seed.Indices = idx
			cfg.Seed.Policy = string(seed.PolicyIndices)
		case "random-seed":
			cfg.Seed.Random = *randomSeed
		case "workers":
			cfg.Run.Workers = *workers
		case "chunk":
			cfg.Run.ChunkSize = *chunk
		case "max-iter":
			cfg.Run.MaxIterations = *maxIter
		case "empty":
			cfg.Run.EmptyPolicy = *empty
		case "out":
			cfg.Run.Output = *out
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})
	if parseErr != nil {
		return nil, parseErr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseIndices(s string) ([]int, error) {
	var idx []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		i, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid seed index %q: %w", f, err)
		}
		idx = append(idx, i)
	}
	return idx, nil
}

func openStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	d := cfg.Dataset
	switch d.Source {
	case config.SourceMinIO:
		creds := credentials.NewEnvMinio()
		if d.AccessKeyID != "" {
			creds = credentials.NewStaticV4(d.AccessKeyID, d.SecretAccessKey, "")
		}
		client, err := minio.New(d.Endpoint, &minio.Options{
			Creds:  creds,
			Secure: d.UseSSL,
			Region: d.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return blobminio.NewStore(client, d.Bucket, d.Prefix), nil
	case config.SourceS3:
		var opts []blobs3.Option
		if d.Prefix != "" {
			opts = append(opts, blobs3.WithPrefix(d.Prefix))
		}
		if d.Region != "" {
			opts = append(opts, blobs3.WithRegion(d.Region))
		}
		if d.Endpoint != "" {
			opts = append(opts, blobs3.WithEndpoint(d.Endpoint))
		}
		return blobs3.New(ctx, d.Bucket, opts...)
	default:
		return blobstore.NewLocalStore(""), nil
	}
}

// promptK asks the operator for the number of clusters.
func promptK(stdin io.Reader, stdout io.Writer) (int, error) {
	fmt.Fprint(stdout, "Enter the number of clusters: ")

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return 0, fmt.Errorf("read number of clusters: %w", err)
	}

	k, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("invalid number of clusters %q", strings.TrimSpace(line))
	}
	return k, nil
}

func chooseSeeds(cfg *config.Config, points [][]float64, k int) ([][]float64, error) {
	switch seed.Policy(cfg.Seed.Policy) {
	case seed.PolicyIndices:
		return seed.Indices(points, cfg.Seed.Indices...)
	case seed.PolicyRandom:
		return seed.Random(points, k, rand.New(rand.NewSource(cfg.Seed.Random)))
	case seed.PolicyPlusPlus:
		return seed.PlusPlus(points, k, rand.New(rand.NewSource(cfg.Seed.Random)))
	default:
		return seed.Stride(points, k, cfg.Seed.Step)
	}
}

func printSummary(w io.Writer, res *kmeans.Result) {
	fmt.Fprintf(w, "Time required for %d clusters is %f seconds\n", res.K(), res.Elapsed.Seconds())
	fmt.Fprintf(w, "Status: %s after %d iterations, inertia %g\n", res.Status, res.Iterations, res.Inertia)
	for c, n := range res.Sizes() {
		fmt.Fprintf(w, "Cluster %d: %d points\n", c, n)
	}
}

func writeAssignment(fsys fs.FileSystem, path string, assignment []int) error {
	return fs.WriteFileAtomic(fsys, path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write([]string{"point", "cluster"}); err != nil {
			return err
		}
		for i, c := range assignment {
			if err := w.Write([]string{strconv.Itoa(i), strconv.Itoa(c)}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}
