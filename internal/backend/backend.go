// Package backend implements the n-gram lookup tables behind a model.
//
// Six layouts share one contract. Probing and RestProbing hash every n-gram
// into per-order open-addressed tables. Trie, QuantTrie, ArrayTrie and
// QuantArrayTrie store a reversed trie: level 1 is keyed by the predicted
// word and each deeper level extends the n-gram one word to the left, so the
// scorer can walk from the unigram outwards through the context.
//
// Backends are views over a byte slice (usually a memory mapping) and never
// copy the tables, with one exception: clamping positive unigram
// probabilities copies the unigram array to the heap.
package backend

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/vocab"
)

var (
	// ErrCorrupt is returned when a search section does not match its header.
	ErrCorrupt = errors.New("backend: corrupt search section")
	// ErrMissingSuffix is returned by writers when an n-gram has no parent.
	ErrMissingSuffix = errors.New("backend: n-gram suffix missing")
)

const noExtensionBits = 0x80000000

// NoExtension is the backoff stored for n-grams that never act as context
// for a longer n-gram. It is negative zero, so adding it changes nothing.
var NoExtension = math.Float32frombits(noExtensionBits)

// Entry is a decoded table entry.
type Entry struct {
	Prob    float32
	Backoff float32
	// Rest is the rest cost. Backends without rest costs report Prob.
	Rest float32
}

// HasExtension reports whether a longer n-gram may use this one as context.
func (e Entry) HasExtension() bool {
	return HasExtension(e.Backoff)
}

// HasExtension reports whether backoff marks an extendable n-gram.
func HasExtension(backoff float32) bool {
	return math.Float32bits(backoff) != noExtensionBits
}

// Node identifies a matched n-gram for extending it one word to the left.
// Probing backends keep the hash key in Begin; tries keep the child range.
type Node struct {
	Begin uint64
	End   uint64
}

// Backend is the lookup contract shared by all layouts.
type Backend interface {
	// Type returns the layout tag.
	Type() format.ModelType
	// Order returns the highest n-gram order.
	Order() int
	// Unigram looks up a single word. ok is false for indices outside the
	// vocabulary.
	Unigram(word vocab.WordIndex) (Entry, Node, bool)
	// Middle extends node by word to an n-gram of the given order, which
	// must lie in [2, Order()-1].
	Middle(order int, word vocab.WordIndex, node Node) (Entry, Node, bool)
	// Longest extends node by word to an n-gram of order Order().
	Longest(word vocab.WordIndex, node Node) (Entry, bool)
	// ScanUnigrams calls fn for every unigram in index order.
	ScanUnigrams(fn func(word vocab.WordIndex, prob float32))
	// ClampUnigrams sets positive unigram probabilities to zero and returns
	// how many were changed.
	ClampUnigrams() int
}

// Lookup returns the entry of the n-gram formed by the last order-1 words of
// context (oldest first) followed by word. A miss is not an error.
func Lookup(b Backend, context []vocab.WordIndex, word vocab.WordIndex, order int) (Entry, bool) {
	if order < 1 || order > b.Order() || len(context) < order-1 {
		return Entry{}, false
	}
	e, node, ok := b.Unigram(word)
	if !ok {
		return Entry{}, false
	}
	for n := 2; n <= order; n++ {
		prev := context[len(context)-(n-1)]
		if n == b.Order() {
			return b.Longest(prev, node)
		}
		if e, node, ok = b.Middle(n, prev, node); !ok {
			return Entry{}, false
		}
	}
	return e, true
}

// Params carries the header fields a backend needs besides the counts.
type Params struct {
	ModelType   format.ModelType
	Counts      []uint64
	ProbBits    uint8
	BackoffBits uint8
	BhikshaBits uint8
}

// ParamsFromHeader extracts Params from a parsed header.
func ParamsFromHeader(h *format.Header) Params {
	return Params{
		ModelType:   h.Fixed.ModelType,
		Counts:      h.Counts,
		ProbBits:    h.Body.ProbBits,
		BackoffBits: h.Body.BackoffBits,
		BhikshaBits: h.Body.BhikshaBits,
	}
}

// Open returns a backend viewing the search section data.
func Open(p Params, data []byte) (Backend, error) {
	if len(p.Counts) == 0 || p.Counts[0] == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", ErrCorrupt)
	}
	switch p.ModelType {
	case format.Probing, format.RestProbing:
		return openProbing(p, data)
	case format.Trie, format.QuantTrie, format.ArrayTrie, format.QuantArrayTrie:
		return openTrie(p, data)
	default:
		return nil, fmt.Errorf("%w: model type %s", ErrCorrupt, p.ModelType)
	}
}

func align8(n uint64) uint64 {
	return (n + 7) &^ 7
}
