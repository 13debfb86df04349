// Package resource bounds what model loading may consume: heap bytes for
// read-into-memory loads, concurrent reader slots for parallel reads, and
// IO throughput for copies from slow sources.
package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrBudgetExceeded is returned for a reservation larger than the whole
// memory limit, which no amount of waiting can satisfy.
var ErrBudgetExceeded = errors.New("resource: memory budget exceeded")

// Config holds resource limits. Zero values mean unlimited, except
// MaxReaders which falls back to GOMAXPROCS.
type Config struct {
	// MemoryLimitBytes caps the combined size of heap-loaded models.
	MemoryLimitBytes int64

	// MaxReaders caps the goroutines of a ParallelRead load.
	MaxReaders int64

	// IOLimitBytesPerSec caps read and write throughput.
	IOLimitBytesPerSec int64
}

// Controller is shared by every load that should draw from the same
// budget. A nil Controller imposes no limits.
type Controller struct {
	readers int64
	limit   int64
	heap    *semaphore.Weighted // nil without a memory limit
	used    atomic.Int64
	slots   *semaphore.Weighted
	io      *rate.Limiter // nil without an IO limit
}

// NewController creates a controller enforcing cfg.
func NewController(cfg Config) *Controller {
	readers := cfg.MaxReaders
	if readers <= 0 {
		readers = int64(runtime.GOMAXPROCS(0))
	}

	c := &Controller{
		readers: readers,
		slots:   semaphore.NewWeighted(readers),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.limit = cfg.MemoryLimitBytes
		c.heap = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// Readers returns the number of reader slots. A nil controller reports
// GOMAXPROCS.
func (c *Controller) Readers() int64 {
	if c == nil {
		return int64(runtime.GOMAXPROCS(0))
	}
	return c.readers
}

// AcquireMemory reserves n heap bytes for a model image, blocking until
// the limit allows it or ctx is done. A request above the limit fails at
// once with ErrBudgetExceeded.
func (c *Controller) AcquireMemory(ctx context.Context, n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if c.heap != nil {
		if n > c.limit {
			return fmt.Errorf("%w: need %d of %d bytes", ErrBudgetExceeded, n, c.limit)
		}
		if err := c.heap.Acquire(ctx, n); err != nil {
			return err
		}
	}
	c.used.Add(n)
	return nil
}

// ReleaseMemory returns bytes reserved by AcquireMemory.
func (c *Controller) ReleaseMemory(n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.heap != nil {
		c.heap.Release(n)
	}
	c.used.Add(-n)
}

// MemoryUsage reports the heap bytes currently held by loaded models.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.used.Load()
}

// AcquireReader takes one reader slot.
func (c *Controller) AcquireReader(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}
	return c.slots.Acquire(ctx, 1)
}

// ReleaseReader returns a slot taken by AcquireReader.
func (c *Controller) ReleaseReader() {
	if c == nil {
		return
	}
	c.slots.Release(1)
}

// AcquireIO waits until n bytes may be transferred.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return nil
	}
	// WaitN rejects requests above the burst.
	burst := c.io.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.io.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
