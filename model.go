package ngramlm

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/backend"
	"github.com/hupe1980/ngramlm/vocab"
)

// Entry is the stored data of one n-gram.
type Entry struct {
	Prob    float32
	Backoff float32
	// Rest is the rest cost; models without rest costs report Prob.
	Rest float32
}

// HasExtension reports whether a longer n-gram may use this one as context.
func (e Entry) HasExtension() bool {
	return backend.HasExtension(e.Backoff)
}

// FullScoreReturn is the detailed result of scoring one word.
type FullScoreReturn struct {
	// Prob is the log10 probability including backoff.
	Prob float32
	// NGramLength is the order of the longest matched n-gram, 0 for <unk>.
	NGramLength uint8
	// Rest is the rest cost of the longest matched n-gram without backoff.
	Rest float32
}

// LoadInfo describes how a model was loaded.
type LoadInfo struct {
	Path      string
	ModelType format.ModelType
	Order     int
	Method    LoadMethod
	// Bytes is the size of the uncompressed model.
	Bytes int64
	// Mapped is true when the model is served from a memory mapping.
	Mapped bool
	// Populated is true when the mapping was prefaulted.
	Populated bool
	Duration  time.Duration
}

// Model is a loaded n-gram language model. It is immutable and safe for
// concurrent scoring. Scoring after Close panics.
type Model struct {
	cfg     Config
	header  *format.Header
	vocab   *vocab.Vocabulary
	backend backend.Backend
	unkProb float32
	info    LoadInfo

	logger  *Logger
	metrics MetricsCollector

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	release   func() error
}

// NewState returns an empty context.
func (m *Model) NewState() State {
	return State{}
}

// NullContextState returns an empty context.
func (m *Model) NullContextState() State {
	return State{}
}

// BeginSentenceState returns the context at the start of a sentence. A
// unigram model has no context, so it returns the null context.
func (m *Model) BeginSentenceState() State {
	var s State
	if m.backend.Order() < 2 {
		return s
	}
	bos := m.vocab.BeginSentence()
	s.Words[0] = bos
	s.Backoff[0] = m.unigramBackoff(bos)
	s.Length = 1
	return s
}

func (m *Model) unigramBackoff(w WordIndex) float32 {
	e, _, ok := m.backend.Unigram(w)
	if !ok {
		return 0
	}
	return e.Backoff
}

// Score returns the log10 probability of word after in and the context for
// the next word.
func (m *Model) Score(in State, word WordIndex) (float32, State) {
	ret, out := m.FullScore(in, word)
	return ret.Prob, out
}

// ScoreWord scores a token by string.
func (m *Model) ScoreWord(in State, token string) (float32, State) {
	return m.Score(in, m.vocab.Index(token))
}

// FullScore scores word after in and reports the matched n-gram length and
// rest cost.
func (m *Model) FullScore(in State, word WordIndex) (FullScoreReturn, State) {
	if m.closed.Load() {
		panic(ErrClosed)
	}
	var out State
	if m.isUnknown(word) {
		return FullScoreReturn{Prob: m.unkProb, Rest: m.unkProb}, out
	}

	e, node, _ := m.backend.Unigram(word)
	ret := FullScoreReturn{Prob: e.Prob, NGramLength: 1, Rest: e.Rest}
	order := m.backend.Order()
	// Contexts never exceed order-1 words, whatever the caller passes in.
	length := min(int(in.Length), order-1)
	out.Words[0] = word
	out.Backoff[0] = e.Backoff
	if e.HasExtension() && order > 1 {
		out.Length = 1
	}

	matched := 0
	for i := 0; i < length; i++ {
		prev := in.Words[i]
		var ok bool
		if i+2 == order {
			if e, ok = m.backend.Longest(prev, node); !ok {
				break
			}
		} else {
			if e, node, ok = m.backend.Middle(i+2, prev, node); !ok {
				break
			}
			out.Words[i+1] = prev
			out.Backoff[i+1] = e.Backoff
			if e.HasExtension() {
				out.Length = uint8(i + 2)
			}
		}
		ret.Prob = e.Prob
		ret.Rest = e.Rest
		ret.NGramLength = uint8(i + 2)
		matched = i + 1
	}

	for i := matched; i < length; i++ {
		ret.Prob += in.Backoff[i]
	}
	return ret, out
}

func (m *Model) isUnknown(word WordIndex) bool {
	return word == m.vocab.NotFound() || int(word) >= m.vocab.Size()
}

// Lookup returns the stored entry of the n-gram formed by the last order-1
// words of context (oldest first) followed by word. A miss is not an error.
func (m *Model) Lookup(context []WordIndex, word WordIndex, order int) (Entry, bool) {
	e, ok := backend.Lookup(m.backend, context, word, order)
	if !ok {
		return Entry{}, false
	}
	return Entry(e), true
}

// LookupRest is Lookup that also returns the rest cost separately. Models
// without rest costs report the probability.
func (m *Model) LookupRest(context []WordIndex, word WordIndex, order int) (Entry, float32, bool) {
	e, ok := m.Lookup(context, word, order)
	return e, e.Rest, ok
}

// Order returns the n-gram order.
func (m *Model) Order() int { return m.backend.Order() }

// ModelType returns the search layout.
func (m *Model) ModelType() format.ModelType { return m.backend.Type() }

// Header returns a copy of the parsed header.
func (m *Model) Header() format.Header {
	h := *m.header
	h.Counts = append([]uint64(nil), h.Counts...)
	return h
}

// Config returns the configuration the model was loaded with.
func (m *Model) Config() Config { return m.cfg }

// LoadInfo returns how the model was loaded.
func (m *Model) LoadInfo() LoadInfo { return m.info }

// StateSize returns the size of State in bytes.
func (m *Model) StateSize() int {
	return int(unsafe.Sizeof(State{}))
}

// Vocabulary returns the vocabulary.
func (m *Model) Vocabulary() *vocab.Vocabulary { return m.vocab }

// Index returns the index of token, or the <unk> index if it is unknown.
func (m *Model) Index(token string) WordIndex { return m.vocab.Index(token) }

// IndexOpt returns the index of token and whether it is known.
func (m *Model) IndexOpt(token string) (WordIndex, bool) { return m.vocab.IndexOpt(token) }

// UnknownLogProb returns the flat log10 penalty of out-of-vocabulary words.
func (m *Model) UnknownLogProb() float32 { return m.unkProb }

// Words returns the vocabulary strings in index order.
func (m *Model) Words() ([]string, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	words := make([]string, 0, m.vocab.Size())
	err := m.vocab.Enumerate(func(_ WordIndex, w string) error {
		words = append(words, w)
		return nil
	})
	if errors.Is(err, vocab.ErrNoWords) {
		return nil, ErrModelHasNoVocab
	}
	return words, err
}
