package resource

import (
	"bytes"
	"context"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimit(t *testing.T) {
	ctx := context.Background()
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(ctx, 50))
	require.NoError(t, c.AcquireMemory(ctx, 40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireMemory(short, 20), context.DeadlineExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	require.NoError(t, c.AcquireMemory(ctx, 20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestMemoryAboveLimit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	err := c.AcquireMemory(context.Background(), 101)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Zero(t, c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(context.Background(), 100))
}

func TestMemoryTrackingOnly(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(context.Background(), 1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestReaderSlots(t *testing.T) {
	ctx := context.Background()
	c := NewController(Config{MaxReaders: 2})
	assert.Equal(t, int64(2), c.Readers())

	require.NoError(t, c.AcquireReader(ctx))
	require.NoError(t, c.AcquireReader(ctx))

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireReader(short), context.DeadlineExceeded)

	c.ReleaseReader()
	require.NoError(t, c.AcquireReader(ctx))
}

func TestNilController(t *testing.T) {
	var c *Controller
	ctx := context.Background()

	require.NoError(t, c.AcquireMemory(ctx, 1<<40))
	c.ReleaseMemory(1 << 40)
	assert.Zero(t, c.MemoryUsage())

	require.NoError(t, c.AcquireReader(ctx))
	c.ReleaseReader()
	assert.Equal(t, int64(runtime.GOMAXPROCS(0)), c.Readers())
	require.NoError(t, c.AcquireIO(ctx, 1<<30))
}

func TestDefaultReaders(t *testing.T) {
	assert.Equal(t, int64(runtime.GOMAXPROCS(0)), NewController(Config{}).Readers())
}

func TestIOAboveBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.AcquireIO(ctx, (1<<20)+10))
}

func TestRateLimitedIO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	ctx := context.Background()

	r := NewRateLimitedReader(ctx, strings.NewReader("language model"), c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "language model", string(got))

	var buf bytes.Buffer
	w := NewRateLimitedWriter(ctx, &buf, c)
	n, err := w.Write([]byte("n-gram"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "n-gram", buf.String())

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	slow := NewController(Config{IOLimitBytesPerSec: 1})
	_, err = NewRateLimitedWriter(canceled, &buf, slow).Write([]byte("xx"))
	assert.Error(t, err)
}
