package fs

import (
	"errors"
	"io"
	"os"
)

// File is an open, writable file.
type File interface {
	io.WriteCloser
	Sync() error
}

// FileSystem abstracts file creation and renaming.
type FileSystem interface {
	Create(name string) (File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

// LocalFS implements FileSystem with the os package.
type LocalFS struct{}

func (LocalFS) Create(name string) (File, error)     { return os.Create(name) }
func (LocalFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }
func (LocalFS) Remove(name string) error             { return os.Remove(name) }

// Default is the local file system.
var Default FileSystem = LocalFS{}

// WriteFileAtomic creates name.tmp, lets write fill it, syncs it and renames
// it to name. On failure the temporary file is removed and name is left
// untouched.
func WriteFileAtomic(fsys FileSystem, name string, write func(w io.Writer) error) (err error) {
	tmp := name + ".tmp"

	f, err := fsys.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = fsys.Remove(tmp)
		}
	}()

	if err := write(f); err != nil {
		return errors.Join(err, f.Close())
	}
	if err := f.Sync(); err != nil {
		return errors.Join(err, f.Close())
	}
	if err := f.Close(); err != nil {
		return err
	}

	return fsys.Rename(tmp, name)
}
