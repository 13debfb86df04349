package vocab

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/ngramlm/internal/conv"
	"github.com/hupe1980/ngramlm/internal/probing"
)

// ErrDuplicate is returned when a token is added twice.
var ErrDuplicate = errors.New("vocab: duplicate token")

// Writer assigns indices in insertion order and serializes the result.
type Writer struct {
	words  []string
	index  map[string]WordIndex
	hashes map[uint64]string
}

// NewWriter returns a Writer whose index 0 is <unk>.
func NewWriter() *Writer {
	w := &Writer{
		index:  make(map[string]WordIndex),
		hashes: make(map[uint64]string),
	}
	_, _ = w.Add(Unknown)
	return w
}

// Add assigns the next index to token.
func (w *Writer) Add(token string) (WordIndex, error) {
	if _, ok := w.index[token]; ok {
		return 0, fmt.Errorf("%w: %q", ErrDuplicate, token)
	}
	h := Hash(token)
	if other, ok := w.hashes[h]; ok {
		return 0, fmt.Errorf("vocab: hash collision between %q and %q", other, token)
	}
	n, err := conv.IntToUint32(len(w.words))
	if err != nil {
		return 0, fmt.Errorf("vocab: too many words: %w", err)
	}
	i := WordIndex(n)
	w.words = append(w.words, token)
	w.index[token] = i
	w.hashes[h] = token
	return i, nil
}

// Lookup returns the index assigned to token.
func (w *Writer) Lookup(token string) (WordIndex, bool) {
	i, ok := w.index[token]
	return i, ok
}

// Len returns the number of assigned indices.
func (w *Writer) Len() int {
	return len(w.words)
}

// Words returns the tokens in index order.
func (w *Writer) Words() []string {
	return w.words
}

// Table serializes the hash table section.
func (w *Writer) Table(multiplier float32) ([]byte, error) {
	buckets := probing.Buckets(uint64(len(w.words)), multiplier)
	b := probing.NewBuilder(buckets, entrySize)
	val := make([]byte, 4)
	for i, token := range w.words {
		binary.LittleEndian.PutUint32(val, uint32(i))
		if err := b.Insert(Hash(token), val); err != nil {
			return nil, fmt.Errorf("vocab: inserting %q: %w", token, err)
		}
	}

	out := make([]byte, headerSize, headerSize+len(b.Bytes()))
	binary.LittleEndian.PutUint64(out[0:], uint64(len(w.words)))
	binary.LittleEndian.PutUint64(out[8:], buckets)
	return append(out, b.Bytes()...), nil
}

// Strings serializes the strings section.
func (w *Writer) Strings() []byte {
	n := uint64(len(w.words))
	out := make([]byte, 8+8*(n+1))
	binary.LittleEndian.PutUint64(out, n)
	var off uint64
	for i, token := range w.words {
		binary.LittleEndian.PutUint64(out[8+8*i:], off)
		off += uint64(len(token))
	}
	binary.LittleEndian.PutUint64(out[8+8*n:], off)
	for _, token := range w.words {
		out = append(out, token...)
	}
	return out
}
