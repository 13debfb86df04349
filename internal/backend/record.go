package backend

import (
	"cmp"
	"slices"

	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/vocab"
)

// Record is a build-time n-gram. Words are in sentence order, so the
// predicted word is last. Backoff already carries NoExtension where needed.
type Record struct {
	Words   []vocab.WordIndex
	Prob    float32
	Backoff float32
	Rest    float32
}

// Input is everything a writer needs to lay out a search section.
type Input struct {
	ModelType format.ModelType
	// Orders[0] holds one unigram per word, indexed by word.
	Orders            [][]Record
	ProbingMultiplier float32
	ProbBits          uint8
	BackoffBits       uint8
	BhikshaBits       uint8
}

// Counts returns the number of records per order.
func (in *Input) Counts() []uint64 {
	counts := make([]uint64, len(in.Orders))
	for i, recs := range in.Orders {
		counts[i] = uint64(len(recs))
	}
	return counts
}

// Params returns the Params a reader needs for the written section.
func (in *Input) Params() Params {
	return Params{
		ModelType:   in.ModelType,
		Counts:      in.Counts(),
		ProbBits:    in.ProbBits,
		BackoffBits: in.BackoffBits,
		BhikshaBits: in.BhikshaBits,
	}
}

// Write serializes the search section for in.ModelType.
func Write(in *Input) ([]byte, error) {
	if in.ModelType.IsProbing() {
		return writeProbing(in)
	}
	return writeTrie(in)
}

// compareReversed orders word tuples by their last word, then the one before,
// and so on. Shorter tuples sort before their extensions.
func compareReversed(a, b []vocab.WordIndex) int {
	i, j := len(a)-1, len(b)-1
	for i >= 0 && j >= 0 {
		if a[i] != b[j] {
			if a[i] < b[j] {
				return -1
			}
			return 1
		}
		i--
		j--
	}
	return cmp.Compare(len(a), len(b))
}

// sortReversed returns a copy of recs sorted by reversed word order.
func sortReversed(recs []Record) []Record {
	out := slices.Clone(recs)
	slices.SortFunc(out, func(a, b Record) int { return compareReversed(a.Words, b.Words) })
	return out
}

// reversedKey returns the words most recent first, the order probing keys use.
func reversedKey(words []vocab.WordIndex) []uint32 {
	out := make([]uint32, len(words))
	for i, w := range words {
		out[len(words)-1-i] = uint32(w)
	}
	return out
}
