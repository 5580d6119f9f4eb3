// Package blobstore provides read access to dataset files wherever they live.
//
// BlobStore is the interface the dataset loader reads through.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, memory-mapped
//   - MemoryStore: in-process blobs for tests and embedding
//   - minio.Store: MinIO and S3-compatible servers, ranged reads
//   - s3.Store: Amazon S3 via the transfer manager
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	}
//
//	type Blob interface {
//	    io.ReaderAt
//	    io.Closer
//	    Size() int64
//	}
package blobstore
