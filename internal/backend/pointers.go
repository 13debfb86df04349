package backend

import (
	"encoding/binary"
	"sort"

	"github.com/hupe1980/ngramlm/internal/bitpack"
)

// pointers decodes next pointers. Plain pointers are stored whole in the
// record; array pointers keep only the low bits inline and recover the high
// bits from a table of the first record index per high value.
type pointers struct {
	inline  uint8
	offsets []byte
	n       int
}

func (p pointers) read(data []byte, bitOff uint64, index uint64) uint64 {
	low := bitpack.Read(data, bitOff, p.inline)
	if p.n == 0 {
		return low
	}
	// Number of high values whose first record is at or before index.
	high := sort.Search(p.n, func(h int) bool {
		return binary.LittleEndian.Uint64(p.offsets[8*h:]) > index
	}) - 1
	return uint64(high)<<p.inline | low
}

// buildOffsets returns the offsets table for a monotone pointer sequence.
func buildOffsets(next []uint64, inline, highBits uint8) []byte {
	n := 1 << highBits
	out := make([]byte, 8*n)
	i := 0
	for h := range n {
		for i < len(next) && next[i]>>inline < uint64(h) {
			i++
		}
		binary.LittleEndian.PutUint64(out[8*h:], uint64(i))
	}
	return out
}
