// Package blobstore abstracts where model files live.
//
// A BlobStore opens immutable blobs for reading. Optional interfaces let the
// loader pick the cheapest path to addressable bytes:
//
//   - Mappable: the blob already is a byte slice (LocalStore maps the file,
//     MemoryStore holds it).
//   - Downloader: the store can transfer a whole blob faster than ReadAt,
//     e.g. with parallel ranged GETs (s3.Store, minio.Store).
//
// Uploader is implemented by stores that accept new models from the builder.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap support
//   - MemoryStore: In-memory store for tests
//   - s3.Store: Amazon S3 with parallel downloads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
package blobstore
