package testutil

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/ngramlm/build"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}
	return n - 1
}

// Word returns the name of the i-th generated vocabulary word.
func Word(i int) string {
	return "w" + strconv.Itoa(i)
}

// Statistics generates a random model of the given order over vocabSize
// words plus <unk>, <s> and </s>. Each order above one gets up to perOrder
// n-grams whose words follow a Zipf distribution. The n-gram set is not
// closed under prefixes and suffixes, so builders must fill the gaps.
func (r *RNG) Statistics(vocabSize, order, perOrder int) *build.Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()

	logProb := func(lo, hi float64) float32 {
		return float32(lo + r.rand.Float64()*(hi-lo))
	}
	backoff := func() float32 {
		if r.rand.Intn(4) == 0 {
			return 0
		}
		return logProb(-1, 0)
	}

	uni := []build.NGram{
		{Words: []string{"<unk>"}, Prob: -3},
		{Words: []string{"<s>"}, Prob: -99, Backoff: backoff()},
		{Words: []string{"</s>"}, Prob: logProb(-2, -0.5)},
	}
	for i := range vocabSize {
		uni = append(uni, build.NGram{Words: []string{Word(i)}, Prob: logProb(-4, -0.5), Backoff: backoff()})
	}
	stats := &build.Statistics{Orders: [][]build.NGram{uni}}

	for n := 2; n <= order; n++ {
		seen := make(map[string]struct{}, perOrder)
		ngrams := make([]build.NGram, 0, perOrder)
		for range perOrder {
			words := make([]string, n)
			for i := range words {
				switch {
				case i == 0 && r.rand.Intn(5) == 0:
					words[i] = "<s>"
				case i == n-1 && r.rand.Intn(8) == 0:
					words[i] = "</s>"
				default:
					words[i] = Word(r.zipfLocked(vocabSize, 1.1))
				}
			}
			k := strings.Join(words, " ")
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			ng := build.NGram{Words: words, Prob: logProb(-3, -0.1)}
			if n < order {
				ng.Backoff = backoff()
			}
			ngrams = append(ngrams, ng)
		}
		stats.Orders = append(stats.Orders, ngrams)
	}
	return stats
}

// CatSat returns a trigram model over "the cat sat" whose sentence score
// is -1.3:
//
//	<s> the        -0.3
//	<s> the cat    -0.2
//	the cat sat    -0.25
//	sat </s>       -0.4 plus backoff(cat sat) -0.15
func CatSat() *build.Statistics {
	return &build.Statistics{Orders: [][]build.NGram{
		{
			{Words: []string{"<unk>"}, Prob: -2},
			{Words: []string{"<s>"}, Prob: -99, Backoff: -0.5},
			{Words: []string{"</s>"}, Prob: -1},
			{Words: []string{"the"}, Prob: -1, Backoff: -0.4},
			{Words: []string{"cat"}, Prob: -1.5, Backoff: -0.3},
			{Words: []string{"sat"}, Prob: -1.7, Backoff: -0.2},
		},
		{
			{Words: []string{"<s>", "the"}, Prob: -0.3, Backoff: -0.1},
			{Words: []string{"the", "cat"}, Prob: -0.6, Backoff: -0.2},
			{Words: []string{"cat", "sat"}, Prob: -0.5, Backoff: -0.15},
			{Words: []string{"sat", "</s>"}, Prob: -0.4},
		},
		{
			{Words: []string{"<s>", "the", "cat"}, Prob: -0.2},
			{Words: []string{"the", "cat", "sat"}, Prob: -0.25},
		},
	}}
}

// CatSatScore is the log10 probability of "<s> the cat sat </s>" under
// CatSat.
const CatSatScore = -1.3

// Reference scores words directly from statistics with the textbook
// backoff recursion. It is slow and serves as an oracle.
type Reference struct {
	order   int
	unkProb float32
	entries map[string]build.NGram
}

// NewReference indexes stats. unkProb is the penalty of words without a
// unigram.
func NewReference(stats *build.Statistics, unkProb float32) *Reference {
	ref := &Reference{order: stats.Order(), unkProb: unkProb, entries: make(map[string]build.NGram)}
	for _, ngrams := range stats.Orders {
		for _, ng := range ngrams {
			ref.entries[strings.Join(ng.Words, " ")] = ng
		}
	}
	if ng, ok := ref.entries["<unk>"]; ok {
		ref.unkProb = ng.Prob
	}
	return ref
}

// Known reports whether word has a unigram.
func (r *Reference) Known(word string) bool {
	_, ok := r.entries[word]
	return ok && word != "<unk>"
}

// Score returns log10 p(word | history). history is oldest first. An
// unknown word scores the flat penalty and an unknown history word cuts
// the history.
func (r *Reference) Score(history []string, word string) float32 {
	if !r.Known(word) {
		return r.unkProb
	}
	for i := len(history) - 1; i >= 0; i-- {
		if !r.Known(history[i]) {
			history = history[i+1:]
			break
		}
	}
	if len(history) > r.order-1 {
		history = history[len(history)-(r.order-1):]
	}
	return r.score(history, word)
}

func (r *Reference) score(history []string, word string) float32 {
	if ng, ok := r.entries[strings.Join(append(append([]string(nil), history...), word), " ")]; ok {
		return ng.Prob
	}
	var bo float32
	if ng, ok := r.entries[strings.Join(history, " ")]; ok {
		bo = ng.Backoff
	}
	return bo + r.score(history[1:], word)
}

// Sentence scores words with sentence markers.
func (r *Reference) Sentence(words []string) float32 {
	history := []string{"<s>"}
	var total float32
	for _, w := range append(append([]string(nil), words...), "</s>") {
		total += r.Score(history, w)
		if !r.Known(w) {
			history = history[:0]
			continue
		}
		history = append(history, w)
	}
	return total
}
