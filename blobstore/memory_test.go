package blobstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Open(ctx, "lm.bin")
	assert.ErrorIs(t, err, ErrNotFound)

	src := []byte("mmap me")
	require.NoError(t, store.Put(ctx, "lm.bin", src))
	src[0] = 'M'

	b, err := store.Open(ctx, "lm.bin")
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, int64(7), b.Size())

	data, err := b.(Mappable).Bytes()
	require.NoError(t, err)
	assert.Equal(t, "mmap me", string(data))

	buf := make([]byte, 4)
	n, err := b.ReadAt(buf, 5)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = b.ReadAt(buf, 7)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMemoryStoreReplace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Upload(ctx, "lm.bin", strings.NewReader("old")))

	old, err := store.Open(ctx, "lm.bin")
	require.NoError(t, err)

	require.NoError(t, store.Upload(ctx, "lm.bin", strings.NewReader("newer")))
	assert.Equal(t, int64(3), old.Size())

	cur, err := store.Open(ctx, "lm.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(5), cur.Size())

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, store.Upload(canceled, "x", strings.NewReader("y")))
}
