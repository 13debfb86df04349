package hash

const (
	combineMulA uint64 = 8978948897894561157
	combineMulB uint64 = 17894857484156487943
)

// Unigram returns the key of a single word.
func Unigram(word uint32) uint64 {
	return uint64(word)
}

// Combine extends key by one more word of context.
func Combine(key uint64, word uint32) uint64 {
	return (key * combineMulA) ^ ((1 + uint64(word)) * combineMulB)
}

// NGram folds words into a key. words[0] is the predicted word and the
// remaining entries are context, most recent first.
func NGram(words []uint32) uint64 {
	key := Unigram(words[0])
	for _, w := range words[1:] {
		key = Combine(key, w)
	}
	return key
}
