package backend

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/ngramlm/vocab"
)

// unigramTable is a dense array of fixed-stride records indexed by word:
// prob f32, backoff f32, then layout-specific fields.
type unigramTable struct {
	data   []byte
	stride int
	count  uint64
}

func (u *unigramTable) prob(w uint64) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(u.data[w*uint64(u.stride):]))
}

func (u *unigramTable) backoff(w uint64) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(u.data[w*uint64(u.stride)+4:]))
}

func (u *unigramTable) field32(w uint64, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(u.data[w*uint64(u.stride)+uint64(off):]))
}

func (u *unigramTable) field64(w uint64, off int) uint64 {
	return binary.LittleEndian.Uint64(u.data[w*uint64(u.stride)+uint64(off):])
}

func (u *unigramTable) scan(fn func(vocab.WordIndex, float32)) {
	for w := range u.count {
		fn(vocab.WordIndex(w), u.prob(w))
	}
}

// clamp copies the table on first write so the mapping stays read-only.
func (u *unigramTable) clamp() int {
	clamped := 0
	copied := false
	for w := range u.count {
		if u.prob(w) <= 0 {
			continue
		}
		if !copied {
			u.data = append([]byte(nil), u.data...)
			copied = true
		}
		binary.LittleEndian.PutUint32(u.data[w*uint64(u.stride):], 0)
		clamped++
	}
	return clamped
}
