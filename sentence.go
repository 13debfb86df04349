package ngramlm

import (
	"math"
	"time"
)

// ScoreSentence returns the total log10 probability of words. bos starts
// from BeginSentenceState instead of the null context; eos adds the
// probability of </s>.
func (m *Model) ScoreSentence(words []string, bos, eos bool) float32 {
	start := time.Now()
	state := m.NullContextState()
	if bos {
		state = m.BeginSentenceState()
	}

	var total float32
	oov := 0
	for _, w := range words {
		idx := m.vocab.Index(w)
		if m.isUnknown(idx) {
			oov++
		}
		var p float32
		p, state = m.Score(state, idx)
		total += p
	}
	scored := len(words)
	if eos {
		p, _ := m.Score(state, m.vocab.EndSentence())
		total += p
		scored++
	}
	m.metrics.RecordSentence(scored, oov, time.Since(start))
	return total
}

// Perplexity returns the per-token perplexity of sentences, each scored with
// sentence markers. </s> counts as a token.
func (m *Model) Perplexity(sentences [][]string) float64 {
	var (
		logProb float64
		tokens  int
	)
	for _, s := range sentences {
		logProb += float64(m.ScoreSentence(s, true, true))
		tokens += len(s) + 1
	}
	if tokens == 0 {
		return 0
	}
	return math.Pow(10, -logProb/float64(tokens))
}
