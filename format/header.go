// Package format defines the on-disk header of binary model files and
// recognizes the variant that produced a file by reading only its header.
//
// # Layout
//
//	┌──────────────────────┐ 0
//	│ sanity (88 bytes)    │ magic, float and integer probes
//	├──────────────────────┤ 88
//	│ fixed params (20)    │ order, probing multiplier, model type, ...
//	├──────────────────────┤ 108
//	│ counts (8 × order)   │ n-gram count per order, padded to 8
//	├──────────────────────┤
//	│ body header (64)     │ flags, bit widths, checksum, section table
//	├──────────────────────┤
//	│ vocabulary section   │
//	│ search section       │
//	│ strings section      │ optional
//	└──────────────────────┘
//
// All integers are little-endian. Sections start on 8-byte boundaries.
package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/hupe1980/ngramlm/internal/compress"
)

const (
	// Magic opens every binary model. It is zero padded to magicSize bytes.
	Magic = "mmap lm github.com/hupe1980/ngramlm format version 1\n\x00"
	// MaxOrder is the largest n-gram order this build can score.
	MaxOrder = 6
	// SearchVersion is the version of the search section layouts.
	SearchVersion = 1

	magicPrefix = "mmap lm "
	magicSize   = 56

	SanitySize     = 88
	FixedSize      = 20
	BodyHeaderSize = 64
)

// FlagUnknownSynthesized is set when <unk> was absent from the statistics and
// the builder inserted it.
const FlagUnknownSynthesized uint32 = 1 << 0

// FixedParameters are the width-independent model parameters.
type FixedParameters struct {
	Order             uint8
	ProbingMultiplier float32
	ModelType         ModelType
	HasVocabulary     bool
	SearchVersion     uint32
}

// Section locates a byte range in the file.
type Section struct {
	Offset uint64
	Size   uint64
}

// End returns the first offset past the section.
func (s Section) End() uint64 {
	return s.Offset + s.Size
}

// Body is the variant-specific part of the header.
type Body struct {
	Flags        uint32
	ProbBits     uint8
	BackoffBits  uint8
	BhikshaBits  uint8
	RestFunction uint8
	// Checksum is the CRC32C of every byte after the header.
	Checksum uint32
	Vocab    Section
	Search   Section
	Strings  Section
}

// Header is the complete parsed header.
type Header struct {
	Fixed  FixedParameters
	Counts []uint64
	Body   Body
}

// Order returns the n-gram order.
func (h *Header) Order() int {
	return int(h.Fixed.Order)
}

// Size returns the encoded header length in bytes.
func (h *Header) Size() int {
	return Size(h.Order())
}

// Size returns the encoded header length for a model of the given order.
func Size(order int) int {
	return Align8(SanitySize+FixedSize+8*order) + BodyHeaderSize
}

// Align8 rounds n up to a multiple of 8.
func Align8(n int) int {
	return (n + 7) &^ 7
}

// AppendBinary appends the encoded header to b.
func (h *Header) AppendBinary(b []byte) []byte {
	start := len(b)
	b = append(b, make([]byte, h.Size())...)
	buf := b[start:]

	copy(buf, Magic)
	binary.LittleEndian.PutUint32(buf[56:], math.Float32bits(0))
	binary.LittleEndian.PutUint32(buf[60:], math.Float32bits(1))
	binary.LittleEndian.PutUint32(buf[64:], math.Float32bits(-0.5))
	binary.LittleEndian.PutUint32(buf[68:], 1)
	binary.LittleEndian.PutUint32(buf[72:], math.MaxUint32)
	binary.LittleEndian.PutUint64(buf[80:], 1)

	p := buf[SanitySize:]
	p[0] = h.Fixed.Order
	binary.LittleEndian.PutUint32(p[4:], math.Float32bits(h.Fixed.ProbingMultiplier))
	binary.LittleEndian.PutUint32(p[8:], uint32(h.Fixed.ModelType))
	if h.Fixed.HasVocabulary {
		p[12] = 1
	}
	binary.LittleEndian.PutUint32(p[16:], h.Fixed.SearchVersion)

	p = buf[SanitySize+FixedSize:]
	for i, c := range h.Counts {
		binary.LittleEndian.PutUint64(p[8*i:], c)
	}

	h.Body.encode(buf[h.Size()-BodyHeaderSize:])
	return b
}

func (b *Body) encode(p []byte) {
	binary.LittleEndian.PutUint32(p[0:], b.Flags)
	p[4] = b.ProbBits
	p[5] = b.BackoffBits
	p[6] = b.BhikshaBits
	p[7] = b.RestFunction
	binary.LittleEndian.PutUint32(p[8:], b.Checksum)
	// [12:16] reserved
	for i, s := range []Section{b.Vocab, b.Search, b.Strings} {
		binary.LittleEndian.PutUint64(p[16+16*i:], s.Offset)
		binary.LittleEndian.PutUint64(p[24+16*i:], s.Size)
	}
}

func decodeBody(p []byte) Body {
	var b Body
	b.Flags = binary.LittleEndian.Uint32(p[0:])
	b.ProbBits = p[4]
	b.BackoffBits = p[5]
	b.BhikshaBits = p[6]
	b.RestFunction = p[7]
	b.Checksum = binary.LittleEndian.Uint32(p[8:])
	sections := []*Section{&b.Vocab, &b.Search, &b.Strings}
	for i, s := range sections {
		s.Offset = binary.LittleEndian.Uint64(p[16+16*i:])
		s.Size = binary.LittleEndian.Uint64(p[24+16*i:])
	}
	return b
}

// Recognize reads the header of the model at path. Compressed files are
// decompressed on the fly; only the header bytes are consumed.
func Recognize(path string, maxOrder int) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, _, err := compress.NewReader(f)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: "unreadable compressed stream", cause: err}
	}
	defer r.Close()

	return RecognizeReader(r, path, maxOrder)
}

// RecognizeReader reads a header from r. name is used in error messages.
// maxOrder <= 0 selects MaxOrder.
func RecognizeReader(r io.Reader, name string, maxOrder int) (*Header, error) {
	if maxOrder <= 0 || maxOrder > MaxOrder {
		maxOrder = MaxOrder
	}

	sanity := make([]byte, SanitySize)
	if n, err := io.ReadFull(r, sanity); err != nil {
		if n < len(magicPrefix) || !bytes.HasPrefix(sanity, []byte(magicPrefix)) {
			return nil, &FormatError{Path: name, Reason: "missing magic bytes", cause: ErrNotBinary}
		}
		return nil, truncated(name, "sanity block", err)
	}
	if err := checkSanity(name, sanity); err != nil {
		return nil, err
	}

	fixed := make([]byte, FixedSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, truncated(name, "fixed parameters", err)
	}
	h := &Header{Fixed: FixedParameters{
		Order:             fixed[0],
		ProbingMultiplier: math.Float32frombits(binary.LittleEndian.Uint32(fixed[4:])),
		ModelType:         ModelType(binary.LittleEndian.Uint32(fixed[8:])),
		HasVocabulary:     fixed[12] != 0,
		SearchVersion:     binary.LittleEndian.Uint32(fixed[16:]),
	}}

	if !h.Fixed.ModelType.Valid() {
		return nil, &FormatError{
			Path:     name,
			Reason:   "unknown model type",
			Expected: "0.." + strconv.Itoa(int(QuantArrayTrie)),
			Found:    strconv.FormatUint(uint64(h.Fixed.ModelType), 10),
		}
	}
	if h.Fixed.SearchVersion != SearchVersion {
		return nil, &FormatError{
			Path:     name,
			Reason:   "unsupported search version for " + h.Fixed.ModelType.String(),
			Expected: strconv.Itoa(SearchVersion),
			Found:    strconv.FormatUint(uint64(h.Fixed.SearchVersion), 10),
		}
	}
	if h.Fixed.Order == 0 {
		return nil, &FormatError{Path: name, Reason: "model order is zero"}
	}
	if h.Order() > maxOrder {
		return nil, &UnsupportedOrderError{Path: name, MaxOrder: maxOrder, ModelOrder: h.Order()}
	}

	rest := make([]byte, h.Size()-SanitySize-FixedSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, truncated(name, "counts", err)
	}
	h.Counts = make([]uint64, h.Order())
	for i := range h.Counts {
		h.Counts[i] = binary.LittleEndian.Uint64(rest[8*i:])
	}
	h.Body = decodeBody(rest[len(rest)-BodyHeaderSize:])

	return h, nil
}

// Parse decodes a header from the start of data.
func Parse(data []byte, name string, maxOrder int) (*Header, error) {
	return RecognizeReader(bytes.NewReader(data), name, maxOrder)
}

func checkSanity(name string, p []byte) error {
	want := make([]byte, magicSize)
	copy(want, Magic)
	if !bytes.Equal(p[:magicSize], want) {
		if bytes.HasPrefix(p, []byte(magicPrefix)) {
			return &FormatError{
				Path:     name,
				Reason:   "unsupported binary format",
				Expected: strconv.Quote(trimMagic(want)),
				Found:    strconv.Quote(trimMagic(p[:magicSize])),
			}
		}
		return &FormatError{Path: name, Reason: "missing magic bytes", cause: ErrNotBinary}
	}

	ok := binary.LittleEndian.Uint32(p[56:]) == math.Float32bits(0) &&
		binary.LittleEndian.Uint32(p[60:]) == math.Float32bits(1) &&
		binary.LittleEndian.Uint32(p[64:]) == math.Float32bits(-0.5) &&
		binary.LittleEndian.Uint32(p[68:]) == 1 &&
		binary.LittleEndian.Uint32(p[72:]) == math.MaxUint32 &&
		binary.LittleEndian.Uint64(p[80:]) == 1
	if !ok {
		return &FormatError{Path: name, Reason: "sanity check failed; file was built on an incompatible architecture"}
	}
	return nil
}

func trimMagic(p []byte) string {
	if i := bytes.IndexByte(p, '\n'); i >= 0 {
		return string(p[:i])
	}
	return string(bytes.TrimRight(p, "\x00"))
}

func truncated(name, part string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &FormatError{Path: name, Reason: "truncated header", Found: part, Expected: "complete header", cause: err}
	}
	return &FormatError{Path: name, Reason: fmt.Sprintf("reading %s", part), cause: err}
}
