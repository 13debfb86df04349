// Package probing implements a read-only open-addressed hash table laid out
// in a flat byte slice.
//
// Every bucket is EntrySize bytes: an 8-byte little-endian key followed by
// the value. Key 0 marks an empty bucket. Collisions are resolved by linear
// probing, wrapping at the end of the table, so at least one bucket must stay
// empty for unsuccessful lookups to terminate.
package probing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const keySize = 8

var (
	// ErrZeroKey is returned when inserting the reserved empty key.
	ErrZeroKey = errors.New("probing: key 0 is reserved")
	// ErrDuplicateKey is returned when a key is inserted twice.
	ErrDuplicateKey = errors.New("probing: duplicate key")
	// ErrFull is returned when no empty bucket remains.
	ErrFull = errors.New("probing: table full")
	// ErrInvalidLayout is returned when a buffer does not hold whole buckets.
	ErrInvalidLayout = errors.New("probing: invalid table layout")
)

// Buckets returns the bucket count for entries keys at the given load
// multiplier. The result always leaves at least one bucket empty.
func Buckets(entries uint64, multiplier float32) uint64 {
	want := uint64(math.Ceil(float64(entries) * float64(multiplier)))
	if want < entries+1 {
		want = entries + 1
	}
	return want
}

// Table is a view over a serialized table. It does not own its buffer.
type Table struct {
	data      []byte
	buckets   uint64
	entrySize int
}

// View wraps data as a table of entrySize-byte buckets.
func View(data []byte, entrySize int) (*Table, error) {
	if entrySize <= keySize || len(data)%entrySize != 0 || len(data) == 0 {
		return nil, fmt.Errorf("%w: %d bytes, entry size %d", ErrInvalidLayout, len(data), entrySize)
	}
	return &Table{
		data:      data,
		buckets:   uint64(len(data) / entrySize),
		entrySize: entrySize,
	}, nil
}

// Buckets returns the number of buckets.
func (t *Table) Buckets() uint64 {
	return t.buckets
}

// Find returns the value bytes stored under key. A table without an empty
// bucket is probed once around and then reports a miss.
func (t *Table) Find(key uint64) ([]byte, bool) {
	if key == 0 {
		return nil, false
	}
	i := key % t.buckets
	for range t.buckets {
		off := int(i) * t.entrySize
		got := binary.LittleEndian.Uint64(t.data[off:])
		if got == key {
			return t.data[off+keySize : off+t.entrySize], true
		}
		if got == 0 {
			return nil, false
		}
		i++
		if i == t.buckets {
			i = 0
		}
	}
	return nil, false
}

// Builder fills a table in memory.
type Builder struct {
	data      []byte
	buckets   uint64
	entrySize int
	size      uint64
}

// NewBuilder allocates an empty table.
func NewBuilder(buckets uint64, entrySize int) *Builder {
	return &Builder{
		data:      make([]byte, buckets*uint64(entrySize)),
		buckets:   buckets,
		entrySize: entrySize,
	}
}

// Insert stores value under key. value may be shorter than the value area;
// the remainder stays zero.
func (b *Builder) Insert(key uint64, value []byte) error {
	if key == 0 {
		return ErrZeroKey
	}
	if len(value) > b.entrySize-keySize {
		return fmt.Errorf("probing: value of %d bytes exceeds entry", len(value))
	}
	if b.size+1 >= b.buckets {
		return ErrFull
	}
	i := key % b.buckets
	for {
		off := int(i) * b.entrySize
		got := binary.LittleEndian.Uint64(b.data[off:])
		if got == key {
			return fmt.Errorf("%w: %#x", ErrDuplicateKey, key)
		}
		if got == 0 {
			binary.LittleEndian.PutUint64(b.data[off:], key)
			copy(b.data[off+keySize:], value)
			b.size++
			return nil
		}
		i++
		if i == b.buckets {
			i = 0
		}
	}
}

// Len returns the number of inserted keys.
func (b *Builder) Len() uint64 {
	return b.size
}

// Bytes returns the serialized table.
func (b *Builder) Bytes() []byte {
	return b.data
}
