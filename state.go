package ngramlm

import (
	"cmp"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/vocab"
)

// WordIndex is a dense vocabulary index. 0 is <unk>.
type WordIndex = vocab.WordIndex

// MaxOrder is the highest n-gram order this build can score.
const MaxOrder = format.MaxOrder

// State is the scoring context: the most recent words first, each with the
// backoff of the n-gram ending at it. Only the first Length entries are
// meaningful, and the scorer shortens the context to the words that can
// still extend to a longer n-gram, so equal States always score equally.
type State struct {
	Words   [MaxOrder - 1]WordIndex
	Backoff [MaxOrder - 1]float32
	Length  uint8
}

// Context returns the valid words, most recent first.
func (s *State) Context() []WordIndex {
	return s.Words[:s.Length]
}

// Equal reports whether two states hold the same context. Backoffs follow
// from the words and are not compared.
func (s State) Equal(o State) bool {
	return s.Compare(o) == 0
}

// Compare orders states by length, then by words.
func (s State) Compare(o State) int {
	if c := cmp.Compare(s.Length, o.Length); c != 0 {
		return c
	}
	for i := range s.Length {
		if c := cmp.Compare(s.Words[i], o.Words[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Hash returns a hash consistent with Equal.
func (s State) Hash() uint64 {
	var buf [4 * (MaxOrder - 1)]byte
	for i := range s.Length {
		binary.LittleEndian.PutUint32(buf[4*int(i):], uint32(s.Words[i]))
	}
	h := xxhash.New()
	_, _ = h.Write([]byte{s.Length})
	_, _ = h.Write(buf[:4*int(s.Length)])
	return h.Sum64()
}
