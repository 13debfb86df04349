package ngramlm

import (
	"log/slog"

	"github.com/hupe1980/ngramlm/resource"
)

// ProgressFunc receives progress of a load stage. total is 0 when unknown.
type ProgressFunc func(stage string, done, total int64)

// VocabCallback receives every vocabulary entry once, in ascending index
// order, while the model loads.
type VocabCallback func(index WordIndex, word string)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	progress         ProgressFunc
	vocabCallback    VocabCallback
	storeVocab       *bool
	verifyChecksum   bool
	controller       *resource.Controller
}

// Option configures Load and Open.
type Option func(*options)

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := ngramlm.NewJSONLogger(slog.LevelInfo)
//	m, _ := ngramlm.Load(ctx, "model.bin", ngramlm.DefaultConfig(), ngramlm.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &ngramlm.BasicMetricsCollector{}
//	m, _ := ngramlm.Load(ctx, path, cfg, ngramlm.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithProgress registers a progress callback. It is called in addition to
// progress logging when Config.ShowProgress is set.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithVocabCallback enumerates the vocabulary during load. The model must
// store vocabulary strings.
func WithVocabCallback(fn VocabCallback) Option {
	return func(o *options) {
		o.vocabCallback = fn
	}
}

// WithStoreVocab controls the vocabulary strings. true makes a model without
// strings a load error; false drops them after load. Without this option
// strings are kept when present.
func WithStoreVocab(store bool) Option {
	return func(o *options) {
		o.storeVocab = &store
	}
}

// WithVerifyChecksum recomputes the body checksum during load. Open-time
// structure checks only catch inconsistent tables, so enable it for files
// from untrusted sources.
func WithVerifyChecksum(verify bool) Option {
	return func(o *options) {
		o.verifyChecksum = verify
	}
}

// WithResourceController bounds heap usage, reader concurrency and IO rate
// of loads. By default a controller with GOMAXPROCS reader slots and no
// limits is used.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.controller == nil {
		o.controller = resource.NewController(resource.Config{})
	}
	return o
}
