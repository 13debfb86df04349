package backend

import (
	"fmt"
	"math"

	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/bitpack"
	"github.com/hupe1980/ngramlm/internal/quantization"
	"github.com/hupe1980/ngramlm/vocab"
)

type level struct {
	levelLayout
	data     []byte
	ptr      pointers
	probs    quantization.Table
	backoffs quantization.Table
}

func (l *level) word(i uint64) uint64 {
	return bitpack.Read(l.data, i*l.width, l.wordBits)
}

func (l *level) find(word uint64, begin, end uint64) (uint64, bool) {
	lo, hi := begin, min(end, l.count)
	for lo < hi {
		mid := lo + (hi-lo)/2
		switch w := l.word(mid); {
		case w < word:
			lo = mid + 1
		case w > word:
			hi = mid
		default:
			return mid, true
		}
	}
	return 0, false
}

func (l *level) prob(i uint64) float32 {
	code := bitpack.Read(l.data, i*l.width+uint64(l.wordBits), l.probBits)
	if l.probs != nil {
		return l.probs.Decode(code)
	}
	return math.Float32frombits(uint32(code))
}

func (l *level) backoff(i uint64) float32 {
	code := bitpack.Read(l.data, i*l.width+uint64(l.wordBits)+uint64(l.probBits), l.backoffBits)
	if l.backoffs != nil {
		return l.backoffs.Decode(code)
	}
	return math.Float32frombits(uint32(code))
}

func (l *level) next(i uint64) uint64 {
	off := i*l.width + uint64(l.wordBits) + uint64(l.probBits) + uint64(l.backoffBits)
	return l.ptr.read(l.data, off, i)
}

type trieBackend struct {
	mt       format.ModelType
	order    int
	unigrams unigramTable
	levels   []level
}

func openTrie(p Params, data []byte) (*trieBackend, error) {
	layout, err := planTrie(p)
	if err != nil {
		return nil, err
	}
	if layout.size > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrCorrupt, p.ModelType, layout.size, len(data))
	}

	b := &trieBackend{
		mt:    p.ModelType,
		order: len(p.Counts),
		unigrams: unigramTable{
			data:   data[layout.unigramOffset : layout.unigramOffset+layout.unigramSize],
			stride: trieUnigramStride,
			count:  p.Counts[0],
		},
	}
	for _, ll := range layout.levels {
		lv := level{
			levelLayout: ll,
			data:        data[ll.bitsOffset : ll.bitsOffset+ll.bitsSize],
			ptr:         pointers{inline: ll.nextBits},
		}
		if ll.highBits > 0 {
			lv.ptr.offsets = data[ll.offsetsOffset : ll.offsetsOffset+ll.offsetsSize]
			lv.ptr.n = 1 << ll.highBits
		}
		if p.ModelType.Quantized() {
			lv.probs = quantization.Table(data[ll.probTable : ll.probTable+uint64(quantization.TableSize(ll.probBits))])
			if !ll.longest {
				lv.backoffs = quantization.Table(data[ll.backoffTable : ll.backoffTable+uint64(quantization.TableSize(ll.backoffBits))])
			}
		}
		b.levels = append(b.levels, lv)
	}
	if err := b.checkSentinels(); err != nil {
		return nil, err
	}
	return b, nil
}

// checkSentinels verifies that every level's last next pointer closes the
// level below it, which catches truncated or shifted bit arrays early.
func (b *trieBackend) checkSentinels() error {
	if len(b.levels) == 0 {
		return nil
	}
	if got, want := b.unigrams.field64(b.unigrams.count, 8), b.levels[0].count; got != want {
		return fmt.Errorf("%w: unigram sentinel points to %d, want %d", ErrCorrupt, got, want)
	}
	for i := 0; i+1 < len(b.levels); i++ {
		if got, want := b.levels[i].next(b.levels[i].count), b.levels[i+1].count; got != want {
			return fmt.Errorf("%w: %d-gram sentinel points to %d, want %d", ErrCorrupt, i+2, got, want)
		}
	}
	return nil
}

func (b *trieBackend) Type() format.ModelType { return b.mt }

func (b *trieBackend) Order() int { return b.order }

func (b *trieBackend) Unigram(word vocab.WordIndex) (Entry, Node, bool) {
	w := uint64(word)
	if w >= b.unigrams.count {
		return Entry{}, Node{}, false
	}
	prob := b.unigrams.prob(w)
	e := Entry{Prob: prob, Backoff: b.unigrams.backoff(w), Rest: prob}
	return e, Node{Begin: b.unigrams.field64(w, 8), End: b.unigrams.field64(w+1, 8)}, true
}

func (b *trieBackend) Middle(order int, word vocab.WordIndex, node Node) (Entry, Node, bool) {
	lv := &b.levels[order-2]
	i, ok := lv.find(uint64(word), node.Begin, node.End)
	if !ok {
		return Entry{}, Node{}, false
	}
	prob := lv.prob(i)
	e := Entry{Prob: prob, Backoff: lv.backoff(i), Rest: prob}
	return e, Node{Begin: lv.next(i), End: lv.next(i + 1)}, true
}

func (b *trieBackend) Longest(word vocab.WordIndex, node Node) (Entry, bool) {
	lv := &b.levels[b.order-2]
	i, ok := lv.find(uint64(word), node.Begin, node.End)
	if !ok {
		return Entry{}, false
	}
	prob := lv.prob(i)
	return Entry{Prob: prob, Backoff: NoExtension, Rest: prob}, true
}

func (b *trieBackend) ScanUnigrams(fn func(vocab.WordIndex, float32)) {
	b.unigrams.scan(fn)
}

func (b *trieBackend) ClampUnigrams() int {
	return b.unigrams.clamp()
}
