// Package mmap provides read-only memory-mapped file access.
//
// Dataset files are mapped instead of read so that large feature tables are
// parsed straight from the page cache.
//
//	m, err := mmap.Open("iris.csv")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes()
//
// Unix uses mmap(2) with a sequential madvise(2) hint; Windows uses
// CreateFileMapping/MapViewOfFile. Empty files are never mapped.
package mmap
