// Package conv provides bounds-checked integer conversions for sizes read
// from model headers and for dense word indices.
//
// Conversions that are provably safe, such as loop indices, use plain casts.
package conv
