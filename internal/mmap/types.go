package mmap

import "errors"

// AccessPattern is a paging hint for a mapping.
type AccessPattern int

const (
	// AccessNormal restores the kernel default read-ahead.
	AccessNormal AccessPattern = iota
	// AccessSequential favors aggressive read-ahead, for whole-file scans
	// such as checksum verification.
	AccessSequential
	// AccessRandom disables read-ahead, for hash and trie lookups.
	AccessRandom
)

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrTooLarge is returned for files that do not fit the address space.
	ErrTooLarge = errors.New("mmap: file too large to map")
	// ErrOutOfBounds is returned for a section outside the mapped bytes.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrInvalidOffset is returned for a negative read offset.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	populate bool
}

// WithPopulate asks the kernel to fault in the whole file while mapping it.
// Platforms without MAP_POPULATE map lazily; check Mapping.Populated.
func WithPopulate() Option {
	return func(o *openOptions) {
		o.populate = true
	}
}

// PopulateSupported reports whether WithPopulate takes effect on this platform.
func PopulateSupported() bool {
	return populateSupported
}
