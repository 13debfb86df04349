package backend

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/ngramlm/internal/bitpack"
	"github.com/hupe1980/ngramlm/internal/quantization"
)

func writeTrie(in *Input) ([]byte, error) {
	p := in.Params()
	layout, err := planTrie(p)
	if err != nil {
		return nil, err
	}
	order := len(in.Orders)
	out := make([]byte, layout.size)

	sorted := make([][]Record, order)
	sorted[0] = in.Orders[0]
	for n := 2; n <= order; n++ {
		sorted[n-1] = sortReversed(in.Orders[n-1])
	}

	// next[n-1][i] is the first child of record i of order n.
	next := make([][]uint64, order)
	for n := 1; n < order; n++ {
		if next[n-1], err = childPointers(sorted[n-1], sorted[n], n); err != nil {
			return nil, err
		}
	}

	for w, r := range sorted[0] {
		if int(r.Words[0]) != w {
			return nil, fmt.Errorf("backend: unigram %d holds word %d", w, r.Words[0])
		}
		u := out[layout.unigramOffset+uint64(w)*trieUnigramStride:]
		binary.LittleEndian.PutUint32(u, math.Float32bits(r.Prob))
		binary.LittleEndian.PutUint32(u[4:], math.Float32bits(r.Backoff))
	}
	for w := range uint64(len(sorted[0])) + 1 {
		var ptr uint64
		if order > 1 {
			ptr = next[0][w]
		}
		binary.LittleEndian.PutUint64(out[layout.unigramOffset+w*trieUnigramStride+8:], ptr)
	}

	for _, lv := range layout.levels {
		if err := writeLevel(out, in, lv, sorted[lv.order-1], next[lv.order-1]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// childPointers returns, for every parent (plus a sentinel), the index of
// its first child. Children are attached to the parent equal to their
// suffix; a child without one is an error.
func childPointers(parents, children []Record, n int) ([]uint64, error) {
	next := make([]uint64, len(parents)+1)
	j := 0
	for i, parent := range parents {
		for j < len(children) && compareReversed(children[j].Words[1:], parent.Words) < 0 {
			return nil, fmt.Errorf("%w: order %d n-gram %v", ErrMissingSuffix, n+1, children[j].Words)
		}
		next[i] = uint64(j)
		for j < len(children) && compareReversed(children[j].Words[1:], parent.Words) == 0 {
			j++
		}
	}
	if j < len(children) {
		return nil, fmt.Errorf("%w: order %d n-gram %v", ErrMissingSuffix, n+1, children[j].Words)
	}
	next[len(parents)] = uint64(len(children))
	return next, nil
}

func writeLevel(out []byte, in *Input, lv levelLayout, recs []Record, next []uint64) error {
	var probs, backoffs *quantization.Codebook
	if in.ModelType.Quantized() {
		values := make([]float32, len(recs))
		for i, r := range recs {
			values[i] = r.Prob
		}
		var err error
		if probs, err = quantization.Train(values, lv.probBits); err != nil {
			return err
		}
		copy(out[lv.probTable:], probs.AppendBinary(nil))
		if !lv.longest {
			for i, r := range recs {
				values[i] = r.Backoff
			}
			if backoffs, err = quantization.TrainBackoff(values, lv.backoffBits); err != nil {
				return err
			}
			copy(out[lv.backoffTable:], backoffs.AppendBinary(nil))
		}
	}

	data := out[lv.bitsOffset : lv.bitsOffset+lv.bitsSize]
	for i, r := range recs {
		off := uint64(i) * lv.width
		bitpack.Write(data, off, lv.wordBits, uint64(r.Words[0]))
		off += uint64(lv.wordBits)
		bitpack.Write(data, off, lv.probBits, encodeFloat(probs, r.Prob))
		off += uint64(lv.probBits)
		if lv.longest {
			continue
		}
		bitpack.Write(data, off, lv.backoffBits, encodeFloat(backoffs, r.Backoff))
		off += uint64(lv.backoffBits)
		bitpack.Write(data, off, lv.nextBits, next[i])
	}
	if lv.longest {
		return nil
	}

	// Sentinel record carries only the pointer past the last child.
	sentinel := uint64(len(recs))*lv.width + uint64(lv.wordBits) + uint64(lv.probBits) + uint64(lv.backoffBits)
	bitpack.Write(data, sentinel, lv.nextBits, next[len(recs)])
	if lv.highBits > 0 {
		copy(out[lv.offsetsOffset:], buildOffsets(next, lv.nextBits, lv.highBits))
	}
	return nil
}

func encodeFloat(cb *quantization.Codebook, v float32) uint64 {
	if cb != nil {
		return cb.Encode(v)
	}
	return uint64(math.Float32bits(v))
}
