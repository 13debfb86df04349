package build

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/ngramlm"
	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/backend"
	"github.com/hupe1980/ngramlm/vocab"
)

// key identifies an n-gram within its order. Unused slots are zero.
type key [format.MaxOrder]vocab.WordIndex

func keyOf(words []vocab.WordIndex) key {
	var k key
	copy(k[:], words)
	return k
}

type gram struct {
	words   []vocab.WordIndex
	prob    float32
	backoff float32
	rest    float32
	blank   bool
}

// table holds one order. grams keeps insertion order so output is
// deterministic.
type table struct {
	grams []*gram
	index map[key]*gram
}

func newTable(capacity int) *table {
	return &table{
		grams: make([]*gram, 0, capacity),
		index: make(map[key]*gram, capacity),
	}
}

func (t *table) get(words []vocab.WordIndex) (*gram, bool) {
	g, ok := t.index[keyOf(words)]
	return g, ok
}

func (t *table) add(g *gram) bool {
	k := keyOf(g.words)
	if _, ok := t.index[k]; ok {
		return false
	}
	t.index[k] = g
	t.grams = append(t.grams, g)
	return true
}

// ngramSet is the indexed statistics. orders[0] is indexed by word.
type ngramSet struct {
	vocab  *vocab.Writer
	orders []*table
	flags  uint32
}

func (s *ngramSet) order() int {
	return len(s.orders)
}

func (s *ngramSet) words(g *gram) []string {
	out := make([]string, len(g.words))
	all := s.vocab.Words()
	for i, w := range g.words {
		out[i] = all[w]
	}
	return out
}

// index assigns word indices and indexes every n-gram. <unk> comes first,
// then <s> and </s> when present, then the remaining unigrams in input
// order.
func index(ctx context.Context, stats *Statistics, cfg ngramlm.Config, logger *ngramlm.Logger) (*ngramSet, error) {
	if stats == nil || len(stats.Orders) == 0 || len(stats.Orders[0]) == 0 {
		return nil, ErrEmpty
	}
	maxOrder := cfg.MaxOrder
	if maxOrder == 0 {
		maxOrder = format.MaxOrder
	}
	if stats.Order() > maxOrder {
		return nil, &ngramlm.UnsupportedOrderError{MaxOrder: maxOrder, ModelOrder: stats.Order()}
	}

	unigrams := make(map[string]NGram, len(stats.Orders[0]))
	for _, ng := range stats.Orders[0] {
		if len(ng.Words) != 1 {
			return nil, fmt.Errorf("%w: unigram %q", ErrBadNGram, ng.Words)
		}
		if _, ok := unigrams[ng.Words[0]]; ok {
			return nil, fmt.Errorf("%w: unigram %q", ErrDuplicate, ng.Words[0])
		}
		unigrams[ng.Words[0]] = ng
	}

	s := &ngramSet{vocab: vocab.NewWriter(), orders: make([]*table, stats.Order())}
	for _, tok := range []string{vocab.BeginSentence, vocab.EndSentence} {
		if _, ok := unigrams[tok]; ok {
			if _, err := s.vocab.Add(tok); err != nil {
				return nil, err
			}
			continue
		}
		policy := cfg.SentenceMarkerMissing
		if policy == ngramlm.ThrowUp {
			return nil, &ngramlm.VocabularyPolicyError{Token: tok, Policy: policy}
		}
		logger.LogPolicy(ctx, policy, "sentence marker missing from statistics", "token", tok)
	}
	for _, ng := range stats.Orders[0] {
		tok := ng.Words[0]
		if tok == vocab.Unknown || tok == vocab.BeginSentence || tok == vocab.EndSentence {
			continue
		}
		if _, err := s.vocab.Add(tok); err != nil {
			return nil, err
		}
	}

	uni := newTable(s.vocab.Len())
	for i, tok := range s.vocab.Words() {
		g := &gram{words: []vocab.WordIndex{vocab.WordIndex(i)}}
		if ng, ok := unigrams[tok]; ok {
			g.prob = ng.Prob
			if stats.Order() > 1 {
				g.backoff = ng.Backoff
			}
		} else {
			// Only <unk> can be absent here.
			policy := cfg.UnknownMissing
			if policy == ngramlm.ThrowUp {
				return nil, &ngramlm.VocabularyPolicyError{Token: vocab.Unknown, Policy: policy}
			}
			logger.LogPolicy(ctx, policy, "<unk> missing from statistics; synthesizing it",
				"logprob", cfg.UnknownMissingLogProb)
			g.prob = cfg.UnknownMissingLogProb
			s.flags |= format.FlagUnknownSynthesized
		}
		uni.add(g)
	}
	s.orders[0] = uni

	for n := 2; n <= stats.Order(); n++ {
		ngrams := stats.Orders[n-1]
		t := newTable(len(ngrams))
		for _, ng := range ngrams {
			if len(ng.Words) != n {
				return nil, fmt.Errorf("%w: %d-gram %q", ErrBadNGram, n, ng.Words)
			}
			g := &gram{words: make([]vocab.WordIndex, n), prob: ng.Prob, backoff: ng.Backoff}
			for i, tok := range ng.Words {
				w, ok := s.vocab.Lookup(tok)
				if !ok {
					return nil, fmt.Errorf("%w: %q in %d-gram %q", ErrMissingUnigram, tok, n, ng.Words)
				}
				g.words[i] = w
			}
			if n == stats.Order() {
				g.backoff = 0
			}
			if !t.add(g) {
				return nil, fmt.Errorf("%w: %d-gram %q", ErrDuplicate, n, ng.Words)
			}
		}
		s.orders[n-1] = t
	}
	return s, nil
}

// checkPositive applies the positive log-probability policy to every order.
func (s *ngramSet) checkPositive(ctx context.Context, cfg ngramlm.Config, logger *ngramlm.Logger) error {
	policy := cfg.PositiveLogProbability
	clamped := 0
	for n, t := range s.orders {
		for _, g := range t.grams {
			if !(g.prob > 0) {
				continue
			}
			if policy == ngramlm.ThrowUp {
				return &ngramlm.NumericPolicyError{Order: n + 1, Words: s.words(g), Prob: g.prob}
			}
			g.prob = 0
			clamped++
		}
	}
	if clamped > 0 {
		logger.LogPolicy(ctx, policy, "clamped positive log-probabilities to zero", "count", clamped)
	}
	return nil
}

// fillBlanks inserts the missing prefixes and suffixes of every n-gram.
// Tries attach an n-gram to its suffix, and the scorer reaches an n-gram
// only through its prefix as context. A blank scores what backoff would
// have produced and has backoff zero.
func (s *ngramSet) fillBlanks() int {
	inserted := 0
	for n := s.order(); n >= 2; n-- {
		lower := s.orders[n-2]
		for _, g := range s.orders[n-1].grams {
			for _, part := range [][]vocab.WordIndex{g.words[:n-1], g.words[1:]} {
				if _, ok := lower.get(part); ok {
					continue
				}
				lower.add(&gram{words: part, blank: true})
				inserted++
			}
		}
	}
	if inserted == 0 {
		return 0
	}
	for n := 2; n < s.order(); n++ {
		for _, g := range s.orders[n-1].grams {
			if g.blank {
				g.prob = s.backoffEstimate(g.words)
			}
		}
	}
	return inserted
}

// backoffEstimate is backoff(w_1..w_{n-1}) + prob(w_2..w_n), the score a
// model without the n-gram assigns to its last word.
func (s *ngramSet) backoffEstimate(words []vocab.WordIndex) float32 {
	n := len(words)
	var est float32
	if ctx, ok := s.orders[n-2].get(words[:n-1]); ok {
		est += ctx.backoff
	}
	if suffix, ok := s.orders[n-2].get(words[1:]); ok {
		est += suffix.prob
	}
	return est
}

// markExtensions replaces the backoff of n-grams that are never a context
// with NoExtension. An n-gram keeps its backoff when it is the prefix of a
// longer n-gram or when the backoff is non-zero.
func (s *ngramSet) markExtensions() {
	order := s.order()
	if order == 1 {
		for _, g := range s.orders[0].grams {
			if g.backoff == 0 {
				g.backoff = backend.NoExtension
			}
		}
		return
	}

	contexts := roaring.New()
	for _, g := range s.orders[1].grams {
		contexts.Add(uint32(g.words[0]))
	}
	for _, g := range s.orders[0].grams {
		if g.backoff == 0 && !contexts.Contains(uint32(g.words[0])) {
			g.backoff = backend.NoExtension
		}
	}

	for n := 2; n < order; n++ {
		prefixes := make(map[key]struct{}, len(s.orders[n].grams))
		for _, g := range s.orders[n].grams {
			prefixes[keyOf(g.words[:n])] = struct{}{}
		}
		for _, g := range s.orders[n-1].grams {
			if _, ok := prefixes[keyOf(g.words)]; !ok && g.backoff == 0 {
				g.backoff = backend.NoExtension
			}
		}
	}
}

// computeRest fills rest costs. The highest order always uses its own
// probability.
func (s *ngramSet) computeRest(fn ngramlm.RestFunction) {
	order := s.order()
	for _, g := range s.orders[order-1].grams {
		g.rest = g.prob
	}

	switch fn {
	case ngramlm.RestLower:
		for _, g := range s.orders[0].grams {
			g.rest = g.prob
		}
		for n := 2; n < order; n++ {
			for _, g := range s.orders[n-1].grams {
				g.rest = s.backoffEstimate(g.words)
			}
		}
	default:
		for n := order - 1; n >= 1; n-- {
			for _, g := range s.orders[n-1].grams {
				g.rest = g.prob
			}
			for _, ext := range s.orders[n].grams {
				parent, ok := s.orders[n-1].get(ext.words[1:])
				if ok && ext.rest > parent.rest {
					parent.rest = ext.rest
				}
			}
		}
	}
}

// records converts one order into backend records.
func (s *ngramSet) records(n int) []backend.Record {
	t := s.orders[n-1]
	out := make([]backend.Record, len(t.grams))
	for i, g := range t.grams {
		out[i] = backend.Record{Words: g.words, Prob: g.prob, Backoff: g.backoff, Rest: g.rest}
	}
	return out
}
