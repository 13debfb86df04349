package backend

import (
	"fmt"

	"github.com/hupe1980/ngramlm/internal/bitpack"
	"github.com/hupe1980/ngramlm/internal/quantization"
)

// Trie layout:
//
//	codebooks  per order 2..N: prob table, backoff table (middle orders only)   quantized only
//	unigrams   (count[0]+1) × (prob f32, backoff f32, next u64)                 last entry is a sentinel
//	order k    bit-packed records word|prob|backoff|next, count[k]+1 records   k = 2..N-1
//	           u64 pointer offsets, 2^highBits entries                          array pointers only
//	order N    bit-packed records word|prob
//
// Every part starts on an 8-byte boundary.

const (
	trieUnigramStride = 16
	rawFloatBits      = 32
)

type levelLayout struct {
	order   int
	count   uint64
	longest bool

	wordBits    uint8
	probBits    uint8
	backoffBits uint8
	nextBits    uint8
	highBits    uint8
	width       uint64

	probTable     uint64
	backoffTable  uint64
	bitsOffset    uint64
	bitsSize      uint64
	offsetsOffset uint64
	offsetsSize   uint64
}

type trieLayout struct {
	unigramOffset uint64
	unigramSize   uint64
	levels        []levelLayout
	size          uint64
}

func planTrie(p Params) (trieLayout, error) {
	mt := p.ModelType
	order := len(p.Counts)
	vocabSize := p.Counts[0]

	probBits, backoffBits := uint8(rawFloatBits), uint8(rawFloatBits)
	if mt.Quantized() {
		if p.ProbBits < quantization.MinBits || p.ProbBits > quantization.MaxBits {
			return trieLayout{}, fmt.Errorf("%w: prob_bits %d", ErrCorrupt, p.ProbBits)
		}
		if p.BackoffBits < quantization.MinBits+1 || p.BackoffBits > quantization.MaxBits {
			return trieLayout{}, fmt.Errorf("%w: backoff_bits %d", ErrCorrupt, p.BackoffBits)
		}
		probBits, backoffBits = p.ProbBits, p.BackoffBits
	}

	var l trieLayout
	var off uint64
	levels := make([]levelLayout, 0, order-1)
	for n := 2; n <= order; n++ {
		lv := levelLayout{
			order:    n,
			count:    p.Counts[n-1],
			longest:  n == order,
			wordBits: bitpack.RequiredBits(vocabSize - 1),
			probBits: probBits,
		}
		if mt.Quantized() {
			lv.probTable = off
			off += uint64(quantization.TableSize(probBits))
			if !lv.longest {
				lv.backoffTable = off
				off += uint64(quantization.TableSize(backoffBits))
			}
		}
		if !lv.longest {
			lv.backoffBits = backoffBits
			total := bitpack.RequiredBits(p.Counts[n])
			if mt.ArrayPointers() {
				lv.highBits = chooseHighBits(lv.count+1, total, p.BhikshaBits)
			}
			lv.nextBits = total - lv.highBits
		}
		lv.width = uint64(lv.wordBits) + uint64(lv.probBits) + uint64(lv.backoffBits) + uint64(lv.nextBits)
		levels = append(levels, lv)
	}

	l.unigramOffset = off
	l.unigramSize = (vocabSize + 1) * trieUnigramStride
	off = align8(off + l.unigramSize)

	for i := range levels {
		lv := &levels[i]
		records := lv.count
		if !lv.longest {
			records++
		}
		lv.bitsOffset = off
		lv.bitsSize = bitpack.Size(records, uint8(lv.width))
		off = align8(off + lv.bitsSize)
		if lv.highBits > 0 {
			lv.offsetsOffset = off
			lv.offsetsSize = 8 << lv.highBits
			off += lv.offsetsSize
		}
	}
	for _, lv := range levels {
		if lv.nextBits > bitpack.MaxBits {
			return trieLayout{}, fmt.Errorf("%w: order %d pointers need %d bits", ErrCorrupt, lv.order, lv.nextBits)
		}
	}
	l.levels = levels
	l.size = off
	return l, nil
}

// chooseHighBits picks how many high pointer bits move into the offsets
// table, minimizing records × inline bits + table size.
func chooseHighBits(records uint64, total, maxHigh uint8) uint8 {
	limit := min(total, maxHigh)
	best, bestSize := uint8(0), records*uint64(total)
	for h := uint8(1); h <= limit; h++ {
		size := records*uint64(total-h) + 64*(uint64(1)<<h)
		if size < bestSize {
			best, bestSize = h, size
		}
	}
	return best
}
