package ngramlm_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/hupe1980/ngramlm"
	"github.com/hupe1980/ngramlm/build"
	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeModel builds stats into a temporary file and returns its path.
func writeModel(t *testing.T, stats *build.Statistics, mt format.ModelType, cfg ngramlm.Config, opts ...build.Option) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), mt.String()+".bin")
	require.NoError(t, build.WriteFile(context.Background(), path, stats, mt, cfg, opts...))
	return path
}

// loadModel builds and loads stats with the default config.
func loadModel(t *testing.T, stats *build.Statistics, mt format.ModelType, opts ...ngramlm.Option) *ngramlm.Model {
	t.Helper()
	cfg := ngramlm.DefaultConfig()
	m, err := ngramlm.Load(context.Background(), writeModel(t, stats, mt, cfg), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func tolerance(mt format.ModelType) float64 {
	if mt.Quantized() {
		return 0.05
	}
	return 1e-5
}

func TestCatSatEndToEnd(t *testing.T) {
	for _, mt := range format.ModelTypes() {
		t.Run(mt.String(), func(t *testing.T) {
			m := loadModel(t, testutil.CatSat(), mt)

			state := m.BeginSentenceState()
			var total float32
			for _, w := range []string{"the", "cat", "sat", "</s>"} {
				var p float32
				p, state = m.ScoreWord(state, w)
				assert.LessOrEqual(t, p, float32(0))
				total += p
			}

			assert.InDelta(t, testutil.CatSatScore, total, tolerance(mt))
			assert.InDelta(t, testutil.CatSatScore, m.ScoreSentence([]string{"the", "cat", "sat"}, true, true), tolerance(mt))
		})
	}
}

func TestHandComputedBackoff(t *testing.T) {
	m := loadModel(t, testutil.CatSat(), format.Probing)

	state := m.BeginSentenceState()
	for _, w := range []string{"the", "cat", "sat"} {
		_, state = m.ScoreWord(state, w)
	}

	// Neither "cat sat the" nor "sat the" exists: p(the) + backoff(sat) +
	// backoff(cat sat).
	ret, out := m.FullScore(state, m.Index("the"))
	assert.InDelta(t, -1.0-0.2-0.15, ret.Prob, 1e-6)
	assert.Equal(t, uint8(1), ret.NGramLength)
	assert.Equal(t, uint8(1), out.Length)
	assert.Equal(t, m.Index("the"), out.Words[0])

	// "the cat sat" is a full trigram match.
	state = m.BeginSentenceState()
	_, state = m.ScoreWord(state, "the")
	_, state = m.ScoreWord(state, "cat")
	ret, _ = m.FullScore(state, m.Index("sat"))
	assert.InDelta(t, -0.25, ret.Prob, 1e-6)
	assert.Equal(t, uint8(3), ret.NGramLength)
}

func TestUnknownWord(t *testing.T) {
	t.Run("stored unk", func(t *testing.T) {
		m := loadModel(t, testutil.CatSat(), format.Trie)

		assert.Equal(t, m.Vocabulary().NotFound(), m.Index("dog"))
		_, ok := m.IndexOpt("dog")
		assert.False(t, ok)

		ret, out := m.FullScore(m.BeginSentenceState(), m.Index("dog"))
		assert.Equal(t, float32(-2), ret.Prob)
		assert.Zero(t, ret.NGramLength)
		assert.Zero(t, out.Length)

		// Indices beyond the vocabulary are unknown as well.
		p, _ := m.Score(m.NullContextState(), ngramlm.WordIndex(1000))
		assert.Equal(t, float32(-2), p)
	})

	t.Run("synthesized unk", func(t *testing.T) {
		stats := testutil.CatSat()
		stats.Orders[0] = stats.Orders[0][1:]
		cfg := ngramlm.DefaultConfig()
		cfg.UnknownMissing = ngramlm.Silent
		path := writeModel(t, stats, format.Probing, cfg)

		m, err := ngramlm.Load(context.Background(), path, cfg)
		require.NoError(t, err)
		defer m.Close()

		assert.Equal(t, float32(-100), m.UnknownLogProb())
		p, _ := m.ScoreWord(m.BeginSentenceState(), "dog")
		assert.Equal(t, float32(-100), p)
		// <s> the -0.3, dog -100 and an empty context, </s> as a unigram -1.
		assert.InDelta(t, -101.3, m.ScoreSentence([]string{"the", "dog"}, true, true), 1e-4)
	})
}

func TestMatchesReference(t *testing.T) {
	for _, order := range []int{1, 2, 4} {
		t.Run(strconv.Itoa(order)+"-gram", func(t *testing.T) {
			rng := testutil.NewRNG(42)
			stats := rng.Statistics(40, order, 300)
			ref := testutil.NewReference(stats, -100)

			sentences := make([][]string, 50)
			for i := range sentences {
				words := make([]string, 2+rng.Intn(10))
				for j := range words {
					if rng.Intn(15) == 0 {
						words[j] = "oov"
						continue
					}
					words[j] = testutil.Word(rng.Zipf(40, 1.1))
				}
				sentences[i] = words
			}

			for _, mt := range format.ModelTypes() {
				t.Run(mt.String(), func(t *testing.T) {
					m := loadModel(t, stats, mt)
					require.Equal(t, order, m.Order())
					for _, s := range sentences {
						want := ref.Sentence(s)
						got := m.ScoreSentence(s, true, true)
						if mt.Quantized() {
							assert.InDelta(t, want, got, 0.1*float64(len(s)+1), "%v", s)
							continue
						}
						assert.InDelta(t, want, got, 1e-4, "%v", s)
					}
				})
			}
		})
	}
}

func TestUnigramModel(t *testing.T) {
	stats := &build.Statistics{Orders: [][]build.NGram{{
		{Words: []string{"<unk>"}, Prob: -2},
		{Words: []string{"<s>"}, Prob: -99, Backoff: -0.5},
		{Words: []string{"</s>"}, Prob: -1},
		{Words: []string{"the"}, Prob: -1, Backoff: -0.4},
	}}}

	for _, mt := range format.ModelTypes() {
		t.Run(mt.String(), func(t *testing.T) {
			m := loadModel(t, stats, mt)
			the := m.Index("the")

			begin := m.BeginSentenceState()
			assert.Zero(t, begin.Length)

			ret, out := m.FullScore(begin, the)
			assert.InDelta(t, -1.0, ret.Prob, tolerance(mt))
			assert.Equal(t, uint8(1), ret.NGramLength)
			assert.Zero(t, out.Length)

			// A context longer than the model allows contributes no backoff.
			long := ngramlm.State{Length: 1}
			long.Words[0] = the
			long.Backoff[0] = -0.4
			prob, _ := m.Score(long, the)
			assert.InDelta(t, -1.0, prob, tolerance(mt))

			assert.InDelta(t, -3.0, m.ScoreSentence([]string{"the", "the"}, true, true), 3*tolerance(mt))
		})
	}
}

func TestStateLongerThanOrder(t *testing.T) {
	for _, mt := range format.ModelTypes() {
		t.Run(mt.String(), func(t *testing.T) {
			m := loadModel(t, testutil.CatSat(), mt)

			// sat, cat as the scorer would leave them, plus a stale third word.
			in := ngramlm.State{Length: 3}
			in.Words[0], in.Backoff[0] = m.Index("sat"), -0.2
			in.Words[1], in.Backoff[1] = m.Index("cat"), -0.15
			in.Words[2], in.Backoff[2] = m.Index("the"), -0.4

			ret, out := m.FullScore(in, m.Index("</s>"))
			assert.InDelta(t, -0.55, ret.Prob, tolerance(mt))
			assert.Equal(t, uint8(2), ret.NGramLength)
			assert.LessOrEqual(t, int(out.Length), m.Order()-1)
		})
	}
}

func TestCrossBackendEquality(t *testing.T) {
	rng := testutil.NewRNG(7)
	stats := rng.Statistics(30, 3, 200)

	models := make(map[format.ModelType]*ngramlm.Model)
	for _, mt := range format.ModelTypes() {
		models[mt] = loadModel(t, stats, mt)
	}
	probing := models[format.Probing]

	for range 200 {
		words := make([]ngramlm.WordIndex, 1+rng.Intn(6))
		for i := range words {
			words[i] = ngramlm.WordIndex(rng.Intn(probing.Vocabulary().Size()))
		}
		for mt, m := range models {
			want, got := probing.BeginSentenceState(), m.BeginSentenceState()
			for _, w := range words {
				var pw, pg ngramlm.FullScoreReturn
				pw, want = probing.FullScore(want, w)
				pg, got = m.FullScore(got, w)
				if mt.Quantized() {
					assert.InDelta(t, pw.Prob, pg.Prob, 0.1)
				} else {
					assert.Equal(t, pw.Prob, pg.Prob, "%s %v", mt, words)
				}
				assert.Equal(t, pw.NGramLength, pg.NGramLength)
				assert.True(t, want.Equal(got))
			}
		}
	}
}

func TestScoreIdempotent(t *testing.T) {
	m := loadModel(t, testutil.NewRNG(3).Statistics(20, 3, 100), format.QuantArrayTrie)

	state := m.BeginSentenceState()
	for i := range 20 {
		w := ngramlm.WordIndex(i % m.Vocabulary().Size())
		r1, s1 := m.FullScore(state, w)
		r2, s2 := m.FullScore(state, w)
		assert.Equal(t, r1, r2)
		assert.Equal(t, s1, s2)
		assert.Equal(t, s1.Hash(), s2.Hash())
		state = s1
	}
}

// fullState returns the unshortened context for history (oldest first):
// every word with the stored backoff of its context n-gram, or zero.
func fullState(m *ngramlm.Model, history []ngramlm.WordIndex) ngramlm.State {
	var s ngramlm.State
	n := min(len(history), m.Order()-1)
	for i := range n {
		s.Words[i] = history[len(history)-1-i]
		if e, ok := m.Lookup(history[len(history)-1-i:len(history)-1], history[len(history)-1], i+1); ok {
			s.Backoff[i] = e.Backoff
		}
	}
	s.Length = uint8(n)
	return s
}

func TestShortenedStateMatchesFullState(t *testing.T) {
	rng := testutil.NewRNG(11)
	stats := rng.Statistics(25, 4, 250)

	for _, mt := range []format.ModelType{format.Probing, format.Trie, format.ArrayTrie} {
		t.Run(mt.String(), func(t *testing.T) {
			m := loadModel(t, stats, mt)
			for range 100 {
				history := []ngramlm.WordIndex{m.Vocabulary().BeginSentence()}
				state := m.BeginSentenceState()
				for range 1 + rng.Intn(6) {
					w := ngramlm.WordIndex(1 + rng.Intn(m.Vocabulary().Size()-1))
					short, next := m.FullScore(state, w)
					full, _ := m.FullScore(fullState(m, history), w)
					assert.InDelta(t, full.Prob, short.Prob, 1e-5)
					assert.Equal(t, full.NGramLength, short.NGramLength)
					assert.LessOrEqual(t, next.Length, uint8(m.Order()-1))
					history = append(history, w)
					state = next
				}
			}
		})
	}
}

func TestBeginSentenceState(t *testing.T) {
	m := loadModel(t, testutil.CatSat(), format.Trie)

	s := m.BeginSentenceState()

	assert.Equal(t, uint8(1), s.Length)
	assert.Equal(t, m.Index("<s>"), s.Words[0])
	assert.Equal(t, float32(-0.5), s.Backoff[0])
	assert.Equal(t, []ngramlm.WordIndex{m.Index("<s>")}, s.Context())
	assert.Zero(t, m.NullContextState().Length)
	assert.True(t, m.NewState().Equal(m.NullContextState()))
}

func TestLookup(t *testing.T) {
	m := loadModel(t, testutil.CatSat(), format.ArrayTrie)
	the, cat, sat := m.Index("the"), m.Index("cat"), m.Index("sat")

	e, ok := m.Lookup([]ngramlm.WordIndex{the, cat}, sat, 3)
	require.True(t, ok)
	assert.Equal(t, float32(-0.25), e.Prob)

	e, ok = m.Lookup([]ngramlm.WordIndex{the}, cat, 2)
	require.True(t, ok)
	assert.Equal(t, float32(-0.6), e.Prob)
	assert.Equal(t, float32(-0.2), e.Backoff)
	assert.True(t, e.HasExtension())

	_, ok = m.Lookup([]ngramlm.WordIndex{sat}, the, 2)
	assert.False(t, ok)
	_, ok = m.Lookup(nil, the, 2)
	assert.False(t, ok)
}

func TestLookupRest(t *testing.T) {
	stats := testutil.CatSat()
	for _, fn := range []ngramlm.RestFunction{ngramlm.RestMax, ngramlm.RestLower} {
		t.Run(fn.String(), func(t *testing.T) {
			cfg := ngramlm.DefaultConfig()
			cfg.RestFunction = fn
			m, err := ngramlm.Load(context.Background(), writeModel(t, stats, format.RestProbing, cfg), cfg)
			require.NoError(t, err)
			defer m.Close()

			assert.Equal(t, uint8(fn), m.Header().Body.RestFunction)
			e, rest, ok := m.LookupRest([]ngramlm.WordIndex{m.Index("the")}, m.Index("cat"), 2)
			require.True(t, ok)
			assert.Equal(t, float32(-0.6), e.Prob)
			if fn == ngramlm.RestMax {
				// "<s> the cat" extends "the cat".
				assert.Equal(t, float32(-0.2), rest)
			} else {
				// backoff(the) + p(cat)
				assert.InDelta(t, -1.9, rest, 1e-6)
			}

			ret, _ := m.FullScore(m.NullContextState(), m.Index("cat"))
			assert.Equal(t, float32(-1.5), ret.Prob)
			if fn == ngramlm.RestMax {
				assert.Equal(t, float32(-0.2), ret.Rest)
			} else {
				assert.Equal(t, float32(-1.5), ret.Rest)
			}
		})
	}

	m := loadModel(t, stats, format.Probing)
	e, rest, ok := m.LookupRest(nil, m.Index("cat"), 1)
	require.True(t, ok)
	assert.Equal(t, e.Prob, rest)
}

func TestModelAccessors(t *testing.T) {
	m := loadModel(t, testutil.CatSat(), format.QuantTrie)

	assert.Equal(t, 3, m.Order())
	assert.Equal(t, format.QuantTrie, m.ModelType())
	assert.Equal(t, []uint64{6, 4, 2}, m.Header().Counts)
	assert.Equal(t, uint8(8), m.Header().Body.ProbBits)
	assert.Equal(t, ngramlm.DefaultConfig(), m.Config())
	assert.Positive(t, m.StateSize())
	assert.Equal(t, 6, m.Vocabulary().Size())

	h := m.Header()
	h.Counts[0] = 99
	assert.Equal(t, uint64(6), m.Header().Counts[0])
}
