// Package prometheus exports model metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc := ngramprom.New(reg)
//	m, err := ngramlm.Load(ctx, path, cfg, ngramlm.WithMetricsCollector(mc))
//	http.Handle("/metrics", ngramprom.Handler(reg))
package prometheus

import (
	"net/http"
	"time"

	"github.com/hupe1980/ngramlm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ngramlm"

// Collector implements ngramlm.MetricsCollector with Prometheus metrics.
type Collector struct {
	loads           *prometheus.CounterVec
	loadDuration    *prometheus.HistogramVec
	loadBytes       prometheus.Gauge
	sentences       prometheus.Counter
	words           prometheus.Counter
	oov             prometheus.Counter
	sentenceLatency prometheus.Histogram
}

var _ ngramlm.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg. A nil reg
// uses the default registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Model loads by model type, load method and status.",
		}, []string{"model_type", "method", "status"}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time to load a model.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"method"}),
		loadBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_bytes",
			Help:      "Uncompressed size of the most recently loaded model.",
		}),
		sentences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_total",
			Help:      "Sentences scored.",
		}),
		words: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_total",
			Help:      "Tokens scored, including </s>.",
		}),
		oov: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oov_words_total",
			Help:      "Tokens scored as <unk>.",
		}),
		sentenceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sentence_duration_seconds",
			Help:      "Time to score one sentence.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
	reg.MustRegister(c.loads, c.loadDuration, c.loadBytes, c.sentences, c.words, c.oov, c.sentenceLatency)
	return c
}

// RecordLoad implements ngramlm.MetricsCollector.
func (c *Collector) RecordLoad(info ngramlm.LoadInfo, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	modelType := "unknown"
	if info.Order > 0 {
		modelType = info.ModelType.String()
	}
	c.loads.WithLabelValues(modelType, info.Method.String(), status).Inc()
	c.loadDuration.WithLabelValues(info.Method.String()).Observe(info.Duration.Seconds())
	if err == nil {
		c.loadBytes.Set(float64(info.Bytes))
	}
}

// RecordSentence implements ngramlm.MetricsCollector.
func (c *Collector) RecordSentence(words, oov int, duration time.Duration) {
	c.sentences.Inc()
	c.words.Add(float64(words))
	c.oov.Add(float64(oov))
	c.sentenceLatency.Observe(duration.Seconds())
}

// Handler returns the scrape handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
