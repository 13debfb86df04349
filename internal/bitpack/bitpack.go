// Package bitpack reads and writes unsigned integers at arbitrary bit offsets.
//
// Values are stored little-endian and may straddle byte boundaries. Readers
// load an unaligned 64-bit word starting at the byte containing the first bit,
// so a field is limited to MaxBits bits and every packed buffer must carry
// Padding spare bytes at its end.
package bitpack

import (
	"encoding/binary"
	"math/bits"
)

const (
	// MaxBits is the widest field Read can decode with a single 64-bit load.
	MaxBits = 57
	// Padding is the number of trailing bytes a packed buffer must provide.
	Padding = 8
)

// Mask returns a mask with the low n bits set.
func Mask(n uint8) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << n) - 1
}

// RequiredBits returns the number of bits needed to represent max.
func RequiredBits(max uint64) uint8 {
	return uint8(bits.Len64(max))
}

// Read decodes a width-bit value starting at bit offset off.
func Read(data []byte, off uint64, width uint8) uint64 {
	if width == 0 {
		return 0
	}
	v := binary.LittleEndian.Uint64(data[off>>3:])
	return (v >> (off & 7)) & Mask(width)
}

// Write stores the low width bits of v at bit offset off. The target bits
// must be zero.
func Write(data []byte, off uint64, width uint8, v uint64) {
	if width == 0 {
		return
	}
	p := data[off>>3:]
	cur := binary.LittleEndian.Uint64(p)
	cur |= (v & Mask(width)) << (off & 7)
	binary.LittleEndian.PutUint64(p, cur)
}

// Size returns the bytes needed for count records of width bits, including
// the trailing padding.
func Size(count uint64, width uint8) uint64 {
	return (count*uint64(width)+7)/8 + Padding
}
