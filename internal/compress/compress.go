// Package compress detects and handles whole-file compression of model files.
//
// Models may be stored gzip, zstd or lz4 (frame format) compressed. The codec
// is recognized by its magic bytes, so readers never need to be told which
// one was used.
package compress

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a compression format.
type Codec uint8

const (
	// None means the stream is stored as is.
	None Codec = iota
	// Gzip is RFC 1952 gzip.
	Gzip
	// Zstd is Zstandard.
	Zstd
	// LZ4 is the lz4 frame format.
	LZ4
)

// ErrUnknownCodec is returned for an unsupported Codec value.
var ErrUnknownCodec = errors.New("compress: unknown codec")

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// magicLen is the longest magic prefix.
const magicLen = 4

// String returns the lower-case codec name.
func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// Detect returns the codec whose magic prefixes head.
func Detect(head []byte) Codec {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	case bytes.HasPrefix(head, lz4Magic):
		return LZ4
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	default:
		return None
	}
}

// NewReader peeks at r and returns a reader over the decompressed stream
// together with the detected codec. Closing the returned reader releases
// decoder state but does not close r.
func NewReader(r io.Reader) (io.ReadCloser, Codec, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(magicLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, None, err
	}

	codec := Detect(head)
	switch codec {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, codec, fmt.Errorf("compress: %w", err)
		}
		return zr, codec, nil
	case Zstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, codec, fmt.Errorf("compress: %w", err)
		}
		return zstdReadCloser{zr}, codec, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(br)), codec, nil
	default:
		return io.NopCloser(br), None, nil
	}
}

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewWriter returns a writer that compresses into w with codec. The caller
// must Close it to flush the trailer; w itself is not closed.
func NewWriter(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
