package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	data := "hello world, this is a test model blob"
	require.NoError(t, store.Upload(ctx, "models/lm.bin", strings.NewReader(data)))

	_, err := os.Stat(filepath.Join(tmpDir, "models", "lm.bin"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, "models/lm.bin")
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	mp, ok := blob.(Mappable)
	require.True(t, ok)
	b, err := mp.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, string(b))

	n, err = blob.ReadAt(make([]byte, 10), int64(len(data))-3)
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLocalStore_UploadReplaces(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "lm.bin", strings.NewReader("first")))
	require.NoError(t, store.Upload(ctx, "lm.bin", strings.NewReader("second")))

	got, err := os.ReadFile(store.Path("lm.bin"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Dir(store.Path("lm.bin")))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary upload files must be cleaned up")
}

func TestLocalStore_UploadCanceled(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Upload(ctx, "lm.bin", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(store.Path("lm.bin"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocalStore_NotFound(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Open(context.Background(), "missing.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}
