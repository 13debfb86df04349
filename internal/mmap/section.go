package mmap

import "fmt"

// Section returns the size bytes of data starting at off. Offsets come from
// untrusted headers, so overflow and truncation are reported as
// ErrOutOfBounds instead of panicking.
func Section(data []byte, off, size uint64) ([]byte, error) {
	end := off + size
	if end < off || end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: [%d, %d+%d) of %d bytes", ErrOutOfBounds, off, off, size, len(data))
	}
	return data[off:end:end], nil
}
