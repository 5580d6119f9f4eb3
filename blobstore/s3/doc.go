// Package s3 provides an Amazon S3 implementation of the blobstore.BlobStore
// interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("datasets/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	table, err := dataset.Load(ctx, store, "iris.csv.zst", dataset.DefaultOptions())
//
// Objects are fetched whole with the transfer manager, which splits large
// objects into concurrent ranged GETs.
package s3
