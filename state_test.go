package ngramlm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateEquality(t *testing.T) {
	a := State{Words: [MaxOrder - 1]WordIndex{4, 3}, Backoff: [MaxOrder - 1]float32{-0.2, -0.1}, Length: 2}
	b := a
	b.Backoff[0] = -0.7
	// Stale entries past Length do not count.
	b.Words[3] = 9

	assert.True(t, a.Equal(b))
	assert.Equal(t, 0, a.Compare(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, []WordIndex{4, 3}, b.Context())

	shorter := a
	shorter.Length = 1
	assert.False(t, a.Equal(shorter))
	assert.Equal(t, -1, shorter.Compare(a))
	assert.NotEqual(t, a.Hash(), shorter.Hash())

	other := a
	other.Words[1] = 5
	assert.Equal(t, -1, a.Compare(other))
	assert.Equal(t, 1, other.Compare(a))
}

func TestStateAsMapKey(t *testing.T) {
	seen := map[uint64]State{}
	for w := range WordIndex(50) {
		s := State{Words: [MaxOrder - 1]WordIndex{w}, Length: 1}
		seen[s.Hash()] = s
	}
	assert.Len(t, seen, 50)
	assert.Equal(t, State{}.Hash(), (&State{Backoff: [MaxOrder - 1]float32{-1}}).Hash())
}
