//go:build !windows

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps size bytes of f read-only. Datasets are parsed front to back
// once, so the kernel is told to read ahead aggressively and drop pages
// behind the cursor.
func mapFile(f *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, &os.PathError{Op: "mmap", Path: f.Name(), Err: err}
	}

	// Some filesystems reject the hint.
	if err := unix.Madvise(data, unix.MADV_SEQUENTIAL); err != nil && !errors.Is(err, unix.EINVAL) {
		_ = unix.Munmap(data)
		return nil, &os.PathError{Op: "madvise", Path: f.Name(), Err: err}
	}
	return data, nil
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}
