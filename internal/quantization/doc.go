// Package quantization trains and applies the scalar codebooks of the
// quantized trie layouts.
//
// A Codebook maps float32 values to b-bit codes by equal-population binning:
// the sorted training values are split into 2^b bins and each bin is
// represented by its mean. Backoff codebooks reserve code 0 for an exact
// zero so that "no backoff" survives quantization. The serialized form is a
// Table of little-endian float32 centers that decodes without allocation.
package quantization
