package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatistics(t *testing.T) {
	rng := NewRNG(4711)

	stats := rng.Statistics(20, 3, 50)

	require.Equal(t, 3, stats.Order())
	assert.Len(t, stats.Orders[0], 23)
	for n, ngrams := range stats.Orders {
		assert.NotEmpty(t, ngrams)
		for _, ng := range ngrams {
			assert.Len(t, ng.Words, n+1)
			assert.LessOrEqual(t, ng.Prob, float32(0))
			if n == 2 {
				assert.Zero(t, ng.Backoff)
			}
		}
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	s1 := rng.Statistics(10, 2, 20)
	rng.Reset()
	s2 := rng.Statistics(10, 2, 20)

	assert.Equal(t, s1, s2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestZipf(t *testing.T) {
	rng := NewRNG(1)
	counts := make([]int, 10)
	for range 2000 {
		counts[rng.Zipf(10, 1.5)]++
	}
	assert.Greater(t, counts[0], counts[9])
}

func TestReferenceCatSat(t *testing.T) {
	ref := NewReference(CatSat(), -100)

	assert.InDelta(t, -0.3, ref.Score([]string{"<s>"}, "the"), 1e-6)
	assert.InDelta(t, -0.2, ref.Score([]string{"<s>", "the"}, "cat"), 1e-6)
	// No "cat sat </s>": backoff(cat sat) + p(</s> | sat).
	assert.InDelta(t, -0.55, ref.Score([]string{"cat", "sat"}, "</s>"), 1e-6)
	// No "sat the": backoff(sat) + p(the).
	assert.InDelta(t, -1.2, ref.Score([]string{"sat"}, "the"), 1e-6)
	assert.InDelta(t, CatSatScore, ref.Sentence([]string{"the", "cat", "sat"}), 1e-5)
}

func TestReferenceUnknown(t *testing.T) {
	ref := NewReference(CatSat(), -100)

	assert.Equal(t, float32(-2), ref.Score(nil, "dog"))
	assert.False(t, ref.Known("dog"))
	assert.False(t, ref.Known("<unk>"))
	// The unknown word cuts the history, so "cat" is scored as a unigram.
	assert.InDelta(t, -1.5, ref.Score([]string{"the", "dog"}, "cat"), 1e-6)
}
