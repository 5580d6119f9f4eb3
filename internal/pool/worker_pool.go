// Package pool provides the fixed-size worker pool used for data-parallel
// phases. Work is submitted as contiguous index ranges and every call blocks
// until all of its ranges have finished.
package pool

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/panjf2000/ants/v2"
)

// ErrClosed is returned when work is submitted to a closed pool.
var ErrClosed = errors.New("pool: closed")

// PanicError wraps a value recovered from a panicking range function.
type PanicError struct {
	Lo, Hi int
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("pool: panic in range [%d,%d): %v", e.Lo, e.Hi, e.Value)
}

// WorkerPool runs range functions on a bounded set of goroutines.
// It is safe for concurrent use; concurrent ParallelRange calls share the
// same workers.
type WorkerPool struct {
	p    *ants.Pool
	size int
}

// New creates a pool with size workers. If size <= 0, GOMAXPROCS is used.
func New(size int) (*WorkerPool, error) {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}

	p, err := ants.NewPool(size, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}

	return &WorkerPool{p: p, size: size}, nil
}

// Size returns the number of workers.
func (w *WorkerPool) Size() int {
	return w.size
}

// Chunks returns the number of ranges [0,n) is split into for chunk size
// chunk.
func Chunks(n, chunk int) int {
	if n <= 0 {
		return 0
	}
	if chunk <= 0 {
		chunk = n
	}
	return (n + chunk - 1) / chunk
}

// ParallelRange splits [0,n) into ranges of at most chunk indices and calls
// fn(c, lo, hi) for each, where c is the range number. It returns after every
// range has completed. A panic in fn is reported as *PanicError; the first
// one (by range number) wins.
func (w *WorkerPool) ParallelRange(n, chunk int, fn func(c, lo, hi int)) error {
	count := Chunks(n, chunk)
	if count == 0 {
		return nil
	}
	if chunk <= 0 {
		chunk = n
	}

	if w.p.IsClosed() {
		return ErrClosed
	}

	done := make(chan struct{}, count)
	panics := make([]*PanicError, count)

	submitted := 0
	var submitErr error
	for c := 0; c < count; c++ {
		lo := c * chunk
		hi := min(lo+chunk, n)

		err := w.p.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					panics[c] = &PanicError{Lo: lo, Hi: hi, Value: r}
				}
				done <- struct{}{}
			}()
			fn(c, lo, hi)
		})
		if err != nil {
			submitErr = err
			break
		}
		submitted++
	}

	for i := 0; i < submitted; i++ {
		<-done
	}

	if submitErr != nil {
		if errors.Is(submitErr, ants.ErrPoolClosed) {
			return ErrClosed
		}
		return submitErr
	}

	for _, p := range panics {
		if p != nil {
			return p
		}
	}
	return nil
}

// Close releases the workers. Calling Close more than once is a no-op.
func (w *WorkerPool) Close() {
	if w == nil || w.p.IsClosed() {
		return
	}
	w.p.Release()
}
