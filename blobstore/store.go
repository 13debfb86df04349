package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound reports a missing model. Stores wrap or return it so that
// errors.Is(err, ErrNotFound) holds; it aliases os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// BlobStore opens published model files by name.
type BlobStore interface {
	Open(ctx context.Context, name string) (Blob, error)
}

// Blob is an open, immutable model file.
type Blob interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Mappable is implemented by blobs whose contents are already addressable.
// The returned slice stays valid until Close and must not be written.
type Mappable interface {
	Bytes() ([]byte, error)
}

// Downloader is implemented by stores that can stage a whole blob faster
// than sequential ReadAt calls. Download returns the number of bytes
// written to w.
type Downloader interface {
	Download(ctx context.Context, name string, w io.WriterAt) (int64, error)
}

// Uploader is implemented by stores that accept built models. A blob is
// visible to Open only once Upload has returned nil, and it replaces any
// blob previously stored under the same name.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) error
}
