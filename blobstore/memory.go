package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStore keeps models in process memory. Blobs it returns are
// Mappable, so loads from it never copy. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Open returns the blob stored under name.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return memoryBlob(data), nil
}

// Put stores a copy of data under name.
func (m *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	return m.Upload(ctx, name, bytes.NewReader(data))
}

// Upload implements Uploader.
func (m *MemoryStore) Upload(ctx context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Stored slices are replaced, never mutated, so open blobs keep theirs.
	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()
	return nil
}

type memoryBlob []byte

func (b memoryBlob) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b memoryBlob) Close() error { return nil }

func (b memoryBlob) Size() int64 { return int64(len(b)) }

func (b memoryBlob) Bytes() ([]byte, error) { return b, nil }
