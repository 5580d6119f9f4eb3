package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/kmeans/blobstore"
	"github.com/hupe1980/kmeans/resource"
)

var (
	// ErrEmpty is returned when the input holds no data records.
	ErrEmpty = errors.New("dataset: no records")

	// ErrNoFeatures is returned when stripping leading and trailing columns
	// leaves nothing to parse.
	ErrNoFeatures = errors.New("dataset: no feature columns")
)

const remoteReadSize = 1 << 20

// ParseError reports a record that could not be turned into a point.
type ParseError struct {
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("dataset: line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("dataset: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options configures parsing.
type Options struct {
	// Comma is the field delimiter. Default ','.
	Comma rune
	// HasHeader skips the first record.
	HasHeader bool
	// SkipLeading drops this many columns from the front of every record.
	SkipLeading int
	// SkipTrailing drops this many columns from the end of every record.
	SkipTrailing int
	// Compression selects the codec; CompressionAuto uses the file name.
	Compression Compression
	// Resources, if set, rate-limits reads and accounts the table's memory.
	Resources *resource.Controller
}

// DefaultOptions matches the classic Iris CSV layout: a header line, a
// leading id column and a trailing label column.
func DefaultOptions() Options {
	return Options{
		Comma:        ',',
		HasHeader:    true,
		SkipLeading:  1,
		SkipTrailing: 1,
		Compression:  CompressionAuto,
	}
}

// Table is an in-memory, read-only feature table.
type Table struct {
	// Points holds one row per record. All rows share one backing array.
	Points [][]float64
	// Dim is the number of features per row.
	Dim int
	// Header holds the feature column names when the input had a header.
	Header []string

	rc        *resource.Controller
	accounted int64
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Points)
}

// Row returns row i.
func (t *Table) Row(i int) []float64 {
	return t.Points[i]
}

// Bytes returns the size of the feature data.
func (t *Table) Bytes() int64 {
	return int64(len(t.Points)) * int64(t.Dim) * 8
}

// Release returns the table's memory reservation to the resource
// controller it was loaded with.
func (t *Table) Release() {
	if t.accounted > 0 {
		t.rc.ReleaseMemory(t.accounted)
		t.accounted = 0
	}
}

// Load opens name in store, decompresses it and parses it.
func Load(ctx context.Context, store blobstore.BlobStore, name string, opts Options) (*Table, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", name, err)
	}
	defer func() { _ = blob.Close() }()

	var src io.Reader
	if m, ok := blob.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		src = bytes.NewReader(data)
	} else {
		// Remote blobs pay a round trip per ReadAt.
		src = bufio.NewReaderSize(blobstore.NewReader(blob), remoteReadSize)
	}
	src = resource.NewRateLimitedReader(ctx, src, opts.Resources)

	codec := opts.Compression
	if codec == CompressionAuto {
		codec = DetectCompression(name)
	}

	rc, err := NewDecompressor(src, codec)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	t, err := Parse(rc, opts)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", name, err)
	}

	if opts.Resources != nil {
		if err := opts.Resources.AcquireMemory(ctx, t.Bytes()); err != nil {
			return nil, err
		}
		t.rc = opts.Resources
		t.accounted = t.Bytes()
	}

	return t, nil
}

// Parse reads delimited text from r. Ragged records, non-numeric fields and
// NaN or infinite values are rejected.
func Parse(r io.Reader, opts Options) (*Table, error) {
	if opts.Comma == 0 {
		opts.Comma = ','
	}
	if opts.SkipLeading < 0 || opts.SkipTrailing < 0 {
		return nil, fmt.Errorf("dataset: negative column skip")
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.Comma
	cr.FieldsPerRecord = 0 // first record fixes the width
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var (
		data   []float64
		dim    = -1
		rows   int
		header []string
	)

	for first := true; ; first = false {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &ParseError{Line: pe.Line, Column: pe.Column, Err: pe.Err}
			}
			return nil, err
		}

		line, _ := cr.FieldPos(0)

		lo, hi := opts.SkipLeading, len(rec)-opts.SkipTrailing
		if hi <= lo {
			return nil, &ParseError{Line: line, Err: ErrNoFeatures}
		}

		if first && opts.HasHeader {
			header = make([]string, hi-lo)
			for i, f := range rec[lo:hi] {
				header[i] = strings.TrimSpace(f)
			}
			continue
		}

		if dim < 0 {
			dim = hi - lo
		}

		for j, f := range rec[lo:hi] {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, &ParseError{Line: line, Column: lo + j + 1, Err: err}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ParseError{Line: line, Column: lo + j + 1, Err: fmt.Errorf("non-finite value %q", f)}
			}
			data = append(data, v)
		}
		rows++
	}

	if rows == 0 {
		return nil, ErrEmpty
	}

	points := make([][]float64, rows)
	for i := range points {
		points[i] = data[i*dim : (i+1)*dim : (i+1)*dim]
	}

	return &Table{Points: points, Dim: dim, Header: header}, nil
}
