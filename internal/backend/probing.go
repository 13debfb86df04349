package backend

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/hash"
	"github.com/hupe1980/ngramlm/internal/probing"
	"github.com/hupe1980/ngramlm/vocab"
)

// Probing layout:
//
//	unigrams   count[0] × (prob, backoff[, rest])     padded to 8
//	order k    u64 buckets, buckets × entry           padded to 8, k = 2..N
//
// Middle entries are key, prob, backoff[, rest]; longest entries are key, prob.

const probingKeySize = 8

func probingUnigramStride(rest bool) int {
	if rest {
		return 12
	}
	return 8
}

func probingEntrySize(order, maxOrder int, rest bool) int {
	switch {
	case order == maxOrder:
		return probingKeySize + 4
	case rest:
		return probingKeySize + 12
	default:
		return probingKeySize + 8
	}
}

type probingBackend struct {
	mt       format.ModelType
	order    int
	rest     bool
	unigrams unigramTable
	tables   []*probing.Table
}

func openProbing(p Params, data []byte) (*probingBackend, error) {
	rest := p.ModelType == format.RestProbing
	order := len(p.Counts)
	b := &probingBackend{
		mt:    p.ModelType,
		order: order,
		rest:  rest,
	}

	stride := probingUnigramStride(rest)
	size := p.Counts[0] * uint64(stride)
	if size > uint64(len(data)) {
		return nil, fmt.Errorf("%w: unigrams need %d bytes, have %d", ErrCorrupt, size, len(data))
	}
	b.unigrams = unigramTable{data: data[:size], stride: stride, count: p.Counts[0]}
	off := align8(size)

	for n := 2; n <= order; n++ {
		if off+8 > uint64(len(data)) {
			return nil, fmt.Errorf("%w: order %d table header out of range", ErrCorrupt, n)
		}
		buckets := binary.LittleEndian.Uint64(data[off:])
		off += 8
		es := probingEntrySize(n, order, rest)
		if buckets <= p.Counts[n-1] || buckets > (uint64(len(data))-off)/uint64(es) {
			return nil, fmt.Errorf("%w: order %d has %d buckets for %d entries", ErrCorrupt, n, buckets, p.Counts[n-1])
		}
		tbl, err := probing.View(data[off:off+buckets*uint64(es)], es)
		if err != nil {
			return nil, fmt.Errorf("%w: order %d: %w", ErrCorrupt, n, err)
		}
		b.tables = append(b.tables, tbl)
		off = align8(off + buckets*uint64(es))
	}
	return b, nil
}

func (b *probingBackend) Type() format.ModelType { return b.mt }

func (b *probingBackend) Order() int { return b.order }

func (b *probingBackend) Unigram(word vocab.WordIndex) (Entry, Node, bool) {
	w := uint64(word)
	if w >= b.unigrams.count {
		return Entry{}, Node{}, false
	}
	e := Entry{Prob: b.unigrams.prob(w), Backoff: b.unigrams.backoff(w)}
	if b.rest {
		e.Rest = b.unigrams.field32(w, 8)
	} else {
		e.Rest = e.Prob
	}
	return e, Node{Begin: hash.Unigram(uint32(word))}, true
}

func (b *probingBackend) Middle(order int, word vocab.WordIndex, node Node) (Entry, Node, bool) {
	key := hash.Combine(node.Begin, uint32(word))
	val, ok := b.tables[order-2].Find(key)
	if !ok {
		return Entry{}, Node{}, false
	}
	e := Entry{
		Prob:    math.Float32frombits(binary.LittleEndian.Uint32(val)),
		Backoff: math.Float32frombits(binary.LittleEndian.Uint32(val[4:])),
	}
	if b.rest {
		e.Rest = math.Float32frombits(binary.LittleEndian.Uint32(val[8:]))
	} else {
		e.Rest = e.Prob
	}
	return e, Node{Begin: key}, true
}

func (b *probingBackend) Longest(word vocab.WordIndex, node Node) (Entry, bool) {
	val, ok := b.tables[b.order-2].Find(hash.Combine(node.Begin, uint32(word)))
	if !ok {
		return Entry{}, false
	}
	prob := math.Float32frombits(binary.LittleEndian.Uint32(val))
	return Entry{Prob: prob, Backoff: NoExtension, Rest: prob}, true
}

func (b *probingBackend) ScanUnigrams(fn func(vocab.WordIndex, float32)) {
	b.unigrams.scan(fn)
}

func (b *probingBackend) ClampUnigrams() int {
	return b.unigrams.clamp()
}

func writeProbing(in *Input) ([]byte, error) {
	rest := in.ModelType == format.RestProbing
	order := len(in.Orders)
	stride := probingUnigramStride(rest)

	out := make([]byte, align8(uint64(len(in.Orders[0])*stride)))
	for w, r := range in.Orders[0] {
		if int(r.Words[0]) != w {
			return nil, fmt.Errorf("backend: unigram %d holds word %d", w, r.Words[0])
		}
		p := out[w*stride:]
		binary.LittleEndian.PutUint32(p, math.Float32bits(r.Prob))
		binary.LittleEndian.PutUint32(p[4:], math.Float32bits(r.Backoff))
		if rest {
			binary.LittleEndian.PutUint32(p[8:], math.Float32bits(r.Rest))
		}
	}

	for n := 2; n <= order; n++ {
		recs := in.Orders[n-1]
		es := probingEntrySize(n, order, rest)
		buckets := probing.Buckets(uint64(len(recs)), in.ProbingMultiplier)
		tb := probing.NewBuilder(buckets, es)
		val := make([]byte, es-probingKeySize)
		for _, r := range recs {
			binary.LittleEndian.PutUint32(val, math.Float32bits(r.Prob))
			if n < order {
				binary.LittleEndian.PutUint32(val[4:], math.Float32bits(r.Backoff))
				if rest {
					binary.LittleEndian.PutUint32(val[8:], math.Float32bits(r.Rest))
				}
			}
			if err := tb.Insert(hash.NGram(reversedKey(r.Words)), val); err != nil {
				return nil, fmt.Errorf("backend: order %d n-gram %v: %w", n, r.Words, err)
			}
		}
		out = binary.LittleEndian.AppendUint64(out, buckets)
		out = append(out, tb.Bytes()...)
		out = append(out, make([]byte, align8(uint64(len(out)))-uint64(len(out)))...)
	}
	return out, nil
}
