// Package vocab maps tokens to dense word indices.
//
// A serialized vocabulary is an open-addressed table of 64-bit token hashes
// plus an optional strings table. Scoring needs only the hash table; the
// strings table backs enumeration and reverse lookup.
//
// Index 0 is always <unk>, which doubles as the not-found marker.
package vocab

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/ngramlm/internal/probing"
)

// WordIndex identifies a vocabulary entry.
type WordIndex uint32

const (
	// Unknown is the token reserved for out-of-vocabulary words.
	Unknown = "<unk>"
	// BeginSentence is the sentence start marker.
	BeginSentence = "<s>"
	// EndSentence is the sentence end marker.
	EndSentence = "</s>"

	// UnknownIndex is the index of <unk>.
	UnknownIndex WordIndex = 0

	entrySize  = 16
	headerSize = 16
)

var (
	// ErrNoWords is returned when the strings table was not stored.
	ErrNoWords = errors.New("vocab: strings not stored")
	// ErrCorrupt is returned for inconsistent serialized data.
	ErrCorrupt = errors.New("vocab: corrupt section")
)

// Hash returns the table key for token. Zero is remapped because it marks
// empty buckets.
func Hash(token string) uint64 {
	h := xxhash.Sum64String(token)
	if h == 0 {
		h = 1
	}
	return h
}

// Vocabulary is a read-only view over a serialized vocabulary.
type Vocabulary struct {
	table    *probing.Table
	size     uint32
	words    *stringTable
	begin    WordIndex
	end      WordIndex
	notFound WordIndex
}

// Open wraps the vocabulary section and the optional strings section. Both
// slices must outlive the Vocabulary.
func Open(section, strings []byte) (*Vocabulary, error) {
	if len(section) < headerSize {
		return nil, fmt.Errorf("%w: %d byte section", ErrCorrupt, len(section))
	}
	size := binary.LittleEndian.Uint64(section[0:])
	buckets := binary.LittleEndian.Uint64(section[8:])
	if size == 0 || size > math.MaxUint32 || buckets <= size || buckets > uint64(len(section)-headerSize)/entrySize {
		return nil, fmt.Errorf("%w: %d words in %d buckets", ErrCorrupt, size, buckets)
	}

	table, err := probing.View(section[headerSize:headerSize+buckets*entrySize], entrySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	v := &Vocabulary{
		table:    table,
		size:     uint32(size),
		begin:    UnknownIndex,
		end:      UnknownIndex,
		notFound: UnknownIndex,
	}
	if len(strings) > 0 {
		st, err := openStrings(strings)
		if err != nil {
			return nil, err
		}
		if st.count != size {
			return nil, fmt.Errorf("%w: %d strings for %d words", ErrCorrupt, st.count, size)
		}
		v.words = st
	}
	return v, nil
}

// Index returns the index of token, or NotFound() for unknown tokens.
func (v *Vocabulary) Index(token string) WordIndex {
	if i, ok := v.IndexOpt(token); ok {
		return i
	}
	return v.notFound
}

// IndexOpt returns the index of token and whether it is in the vocabulary.
func (v *Vocabulary) IndexOpt(token string) (WordIndex, bool) {
	val, ok := v.table.Find(Hash(token))
	if !ok {
		return 0, false
	}
	return WordIndex(binary.LittleEndian.Uint32(val)), true
}

// SetSpecial registers the reserved indices.
func (v *Vocabulary) SetSpecial(begin, end, notFound WordIndex) {
	v.begin = begin
	v.end = end
	v.notFound = notFound
}

// BeginSentence returns the index of <s>.
func (v *Vocabulary) BeginSentence() WordIndex { return v.begin }

// EndSentence returns the index of </s>.
func (v *Vocabulary) EndSentence() WordIndex { return v.end }

// NotFound returns the index reported for unknown tokens.
func (v *Vocabulary) NotFound() WordIndex { return v.notFound }

// Size returns the number of entries including <unk>.
func (v *Vocabulary) Size() int { return int(v.size) }

// HasWords reports whether the strings table is available.
func (v *Vocabulary) HasWords() bool { return v.words != nil }

// Word returns the token at index.
func (v *Vocabulary) Word(i WordIndex) (string, bool) {
	if v.words == nil || uint32(i) >= v.size {
		return "", false
	}
	return v.words.at(uint64(i)), true
}

// Enumerate calls fn for every entry in ascending index order. It stops at
// the first error fn returns.
func (v *Vocabulary) Enumerate(fn func(WordIndex, string) error) error {
	if v.words == nil {
		return ErrNoWords
	}
	for i := range v.words.count {
		if err := fn(WordIndex(i), v.words.at(i)); err != nil {
			return err
		}
	}
	return nil
}

// DropWords detaches the strings table.
func (v *Vocabulary) DropWords() {
	v.words = nil
}

// stringTable is count, count+1 offsets, then the concatenated tokens.
type stringTable struct {
	count   uint64
	offsets []byte
	blob    []byte
}

func openStrings(data []byte) (*stringTable, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: strings table too short", ErrCorrupt)
	}
	count := binary.LittleEndian.Uint64(data)
	slots := uint64(len(data)-8) / 8
	if slots == 0 || count > slots-1 {
		return nil, fmt.Errorf("%w: %d strings do not fit", ErrCorrupt, count)
	}
	offsets := data[8 : 8+8*(count+1)]
	blob := data[8+8*(count+1):]
	last := binary.LittleEndian.Uint64(offsets[8*count:])
	if last > uint64(len(blob)) {
		return nil, fmt.Errorf("%w: strings blob truncated", ErrCorrupt)
	}
	return &stringTable{count: count, offsets: offsets, blob: blob}, nil
}

func (s *stringTable) at(i uint64) string {
	lo := binary.LittleEndian.Uint64(s.offsets[8*i:])
	hi := binary.LittleEndian.Uint64(s.offsets[8*i+8:])
	return string(s.blob[lo:hi])
}
