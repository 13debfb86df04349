package format

import (
	"fmt"
	"strings"
)

// ModelType is the backend variant tag stored in the header.
type ModelType uint32

const (
	Probing ModelType = iota
	RestProbing
	Trie
	QuantTrie
	ArrayTrie
	QuantArrayTrie
)

var modelTypeNames = [...]string{
	Probing:        "probing",
	RestProbing:    "rest_probing",
	Trie:           "trie",
	QuantTrie:      "quant_trie",
	ArrayTrie:      "array_trie",
	QuantArrayTrie: "quant_array_trie",
}

// ModelTypes lists every supported variant.
func ModelTypes() []ModelType {
	return []ModelType{Probing, RestProbing, Trie, QuantTrie, ArrayTrie, QuantArrayTrie}
}

// String returns the snake case variant name.
func (t ModelType) String() string {
	if t.Valid() {
		return modelTypeNames[t]
	}
	return fmt.Sprintf("model_type(%d)", uint32(t))
}

// ParseModelType is the inverse of String.
func ParseModelType(s string) (ModelType, error) {
	for i, name := range modelTypeNames {
		if strings.EqualFold(s, name) {
			return ModelType(i), nil
		}
	}
	return 0, fmt.Errorf("format: unknown model type %q", s)
}

// Valid reports whether t is a known variant.
func (t ModelType) Valid() bool {
	return t <= QuantArrayTrie
}

// IsProbing reports whether t is a hash-table layout.
func (t ModelType) IsProbing() bool {
	return t == Probing || t == RestProbing
}

// Quantized reports whether t stores codebook-quantized values.
func (t ModelType) Quantized() bool {
	return t == QuantTrie || t == QuantArrayTrie
}

// ArrayPointers reports whether t stores array-compressed trie pointers.
func (t ModelType) ArrayPointers() bool {
	return t == ArrayTrie || t == QuantArrayTrie
}
