package ngramlm

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prometheus package provides a Prometheus implementation.
//
// Per-word scoring is not instrumented; sentence helpers are.
type MetricsCollector interface {
	// RecordLoad is called once per Load or Open. info is partially filled
	// when err is not nil.
	RecordLoad(info LoadInfo, err error)

	// RecordSentence is called after ScoreSentence. words counts the scored
	// tokens including </s>, oov those mapped to <unk>.
	RecordSentence(words, oov int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(LoadInfo, error)             {}
func (NoopMetricsCollector) RecordSentence(int, int, time.Duration) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount          atomic.Int64
	LoadErrors         atomic.Int64
	LoadBytes          atomic.Int64
	LoadTotalNanos     atomic.Int64
	SentenceCount      atomic.Int64
	WordCount          atomic.Int64
	OOVCount           atomic.Int64
	SentenceTotalNanos atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(info LoadInfo, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(info.Duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadBytes.Add(info.Bytes)
}

// RecordSentence implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSentence(words, oov int, duration time.Duration) {
	b.SentenceCount.Add(1)
	b.WordCount.Add(int64(words))
	b.OOVCount.Add(int64(oov))
	b.SentenceTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:        b.LoadCount.Load(),
		LoadErrors:       b.LoadErrors.Load(),
		LoadBytes:        b.LoadBytes.Load(),
		LoadAvgNanos:     avg(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		SentenceCount:    b.SentenceCount.Load(),
		WordCount:        b.WordCount.Load(),
		OOVCount:         b.OOVCount.Load(),
		SentenceAvgNanos: avg(b.SentenceTotalNanos.Load(), b.SentenceCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount        int64
	LoadErrors       int64
	LoadBytes        int64
	LoadAvgNanos     int64
	SentenceCount    int64
	WordCount        int64
	OOVCount         int64
	SentenceAvgNanos int64
}
