package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Open(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	data := []byte("sepal_length,sepal_width\n5.1,3.5\n")
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "iris.csv"), data, 0o600))

	blob, err := store.Open(ctx, "iris.csv")
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	assert.Equal(t, "lengt", string(buf))

	all, err := io.ReadAll(NewReader(blob))
	require.NoError(t, err)
	assert.Equal(t, data, all)

	m, ok := blob.(Mappable)
	require.True(t, ok)
	b, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, b)
}

func TestLocalStore_NotFound(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	_, err := store.Open(context.Background(), "missing.csv")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStore_AbsolutePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abs.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	blob, err := NewLocalStore("").Open(context.Background(), path)
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(1), blob.Size())
}

func TestLocalStore_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalStore(t.TempDir()).Open(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	src := []byte("1,2,3\n")
	store.Put("a/one.csv", src)
	store.Put("a/two.csv", []byte("4,5,6\n"))
	store.Put("b/three.csv", nil)

	// Stored data is a copy.
	src[0] = '9'

	blob, err := store.Open(ctx, "a/one.csv")
	require.NoError(t, err)
	defer blob.Close()

	all, err := io.ReadAll(NewReader(blob))
	require.NoError(t, err)
	assert.Equal(t, "1,2,3\n", string(all))

	assert.Equal(t, []string{"a/one.csv", "a/two.csv"}, store.List("a/"))
	assert.Len(t, store.List(""), 3)

	_, err = store.Open(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBytesBlob(t *testing.T) {
	blob := BytesBlob([]byte("abc"))
	assert.Equal(t, int64(3), blob.Size())

	buf := make([]byte, 4)
	n, err := blob.ReadAt(buf, 1)
	assert.Equal(t, 2, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "bc", string(buf[:n]))
}
