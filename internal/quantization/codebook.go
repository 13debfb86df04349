package quantization

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

const (
	// MinBits and MaxBits bound the code width of a codebook.
	MinBits = 1
	MaxBits = 25

	// NoExtensionCode and ZeroBackoffCode are reserved in backoff codebooks.
	NoExtensionCode = 0
	ZeroBackoffCode = 1
)

// ErrInvalidBits is returned for a code width outside [MinBits, MaxBits].
var ErrInvalidBits = errors.New("quantization: invalid bit width")

// Codebook maps fixed-width codes to reconstructed float values.
//
// Centers are sorted ascending, which lets Encode find the nearest center with
// a binary search. Backoff codebooks reserve code 0 for negative zero and
// code 1 for positive zero; the remaining centers are trained on the non-zero
// backoffs.
type Codebook struct {
	bits     uint8
	centers  []float32
	reserved int
}

// Train builds a codebook with 2^bits equal-count bins over values. Each
// center is the mean of its bin. If values has no more distinct entries than
// bins the codebook reproduces every value exactly.
func Train(values []float32, bits uint8) (*Codebook, error) {
	if bits < MinBits || bits > MaxBits {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBits, bits)
	}
	return &Codebook{
		bits:    bits,
		centers: train(values, 1<<bits),
	}, nil
}

// TrainBackoff builds a backoff codebook. Zero values (of either sign) are
// encoded with the reserved codes and excluded from training.
func TrainBackoff(values []float32, bits uint8) (*Codebook, error) {
	if bits < MinBits+1 || bits > MaxBits {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBits, bits)
	}
	nonZero := make([]float32, 0, len(values))
	for _, v := range values {
		if v != 0 {
			nonZero = append(nonZero, v)
		}
	}
	centers := make([]float32, 0, 1<<bits)
	centers = append(centers, float32(math.Copysign(0, -1)), 0)
	centers = append(centers, train(nonZero, (1<<bits)-2)...)
	return &Codebook{
		bits:     bits,
		centers:  centers,
		reserved: 2,
	}, nil
}

func train(values []float32, bins int) []float32 {
	centers := make([]float32, bins)
	if len(values) == 0 {
		return centers
	}

	sorted := make([]float32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	distinct := sorted[:1]
	for _, v := range sorted[1:] {
		if v != distinct[len(distinct)-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) <= bins {
		n := copy(centers, distinct)
		for i := n; i < bins; i++ {
			centers[i] = distinct[len(distinct)-1]
		}
		return centers
	}

	n := len(sorted)
	for b := range bins {
		lo, hi := b*n/bins, (b+1)*n/bins
		var sum float64
		for _, v := range sorted[lo:hi] {
			sum += float64(v)
		}
		centers[b] = float32(sum / float64(hi-lo))
	}
	return centers
}

// Bits returns the code width.
func (c *Codebook) Bits() uint8 {
	return c.bits
}

// Centers returns the reconstruction table.
func (c *Codebook) Centers() []float32 {
	return c.centers
}

// Encode returns the code of the center nearest to v.
func (c *Codebook) Encode(v float32) uint64 {
	if c.reserved > 0 && v == 0 {
		if math.Signbit(float64(v)) {
			return NoExtensionCode
		}
		return ZeroBackoffCode
	}
	trained := c.centers[c.reserved:]
	i := sort.Search(len(trained), func(i int) bool { return trained[i] >= v })
	switch {
	case i == len(trained):
		i--
	case i > 0 && v-trained[i-1] <= trained[i]-v:
		i--
	}
	return uint64(i + c.reserved)
}

// Decode returns the center for code.
func (c *Codebook) Decode(code uint64) float32 {
	return c.centers[code]
}

// Size returns the serialized size in bytes.
func (c *Codebook) Size() int {
	return 4 * len(c.centers)
}

// AppendBinary appends the little-endian centers to b.
func (c *Codebook) AppendBinary(b []byte) []byte {
	for _, v := range c.centers {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

// Table is a serialized codebook read in place.
type Table []byte

// TableSize returns the serialized size of a codebook of the given width.
func TableSize(bits uint8) int {
	return 4 << bits
}

// Decode returns the center for code.
func (t Table) Decode(code uint64) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(t[code*4:]))
}
