// Package hash provides the hashing primitives used by model files.
//
// # CRC32-Castagnoli (CRC32C)
//
// Model bodies are protected by a CRC32C checksum stored in the body header:
//
//	checksum := hash.CRC32C(body)
//
// Verification walks large bodies in chunks:
//
//	var crc uint32
//	for _, chunk := range chunks {
//		crc = hash.UpdateCRC32C(crc, chunk)
//	}
//
// # N-gram keys
//
// Probing tables address an n-gram by folding its words, most recent first,
// into a 64-bit key:
//
//	key := hash.Unigram(word)
//	key = hash.Combine(key, previous)
package hash
