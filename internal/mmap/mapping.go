package mmap

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
)

// Mapping is a read-only view of a whole model file.
type Mapping struct {
	data      []byte
	populated bool
	closed    atomic.Bool
	unmap     func([]byte) error
}

// Open maps the file at path read-only and shared, so every process serving
// the same model shares one copy in the page cache.
func Open(path string, opts ...Option) (*Mapping, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if size < 0 || size > math.MaxInt {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, size)
	}

	populate := o.populate && populateSupported
	data, unmapFunc, err := osMap(f, int(size), populate)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:      data,
		populated: populate,
		unmap:     unmapFunc,
	}, nil
}

// Close releases the mapping. Calls after the first return nil.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Bytes returns the mapped file, or nil once closed. Touching the slice
// after Close faults.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size is the file length in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Populated reports whether the pages were faulted in when mapping.
func (m *Mapping) Populated() bool {
	return m.populated
}

// Advise sets the paging hint for the whole mapping.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt copies from the mapping, so a Mapping can back a blob.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
