// Package metrics exports Prometheus metrics for analysis, matching and indexing.
//
// All Recorder methods are safe on a nil receiver so components can run
// without metrics in tests and tools.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stylematch"

// Recorder owns a registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	slotLatency    *prometheus.HistogramVec
	slotFailures   *prometheus.CounterVec
	searchLatency  *prometheus.HistogramVec
	searchRequests *prometheus.CounterVec
	candidates     prometheus.Counter
	cacheLookups   *prometheus.CounterVec
	indexedItems   *prometheus.CounterVec
}

// Config configures the Recorder.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}
}

// New creates a Recorder and registers its collectors.
func New(cfg Config) *Recorder {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	r := &Recorder{registry: registry}

	r.slotLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "slot_latency_seconds",
			Help:      "Embedding latency per vector slot in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"slot"},
	)

	r.slotFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "slot_failures_total",
			Help:      "Total number of failed slot generations",
		},
		[]string{"slot"},
	)

	r.searchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "match_latency_seconds",
			Help:      "Match request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"search_mode"},
	)

	r.searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "match_requests_total",
			Help:      "Total number of match requests",
		},
		[]string{"search_mode", "status"},
	)

	r.candidates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "candidates_scanned_total",
			Help:      "Total number of stored records scored",
		},
	)

	r.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "cache_lookups_total",
			Help:      "Text embedding cache lookups",
		},
		[]string{"result"},
	)

	r.indexedItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "items_total",
			Help:      "Media items processed by the indexer",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		r.slotLatency,
		r.slotFailures,
		r.searchLatency,
		r.searchRequests,
		r.candidates,
		r.cacheLookups,
		r.indexedItems,
	)
	return r
}

// ObserveSlot records the outcome of one slot generation.
func (r *Recorder) ObserveSlot(slot string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.slotLatency.WithLabelValues(slot).Observe(d.Seconds())
	if err != nil {
		r.slotFailures.WithLabelValues(slot).Inc()
	}
}

// ObserveMatch records one match request. status is ok, partial or error.
func (r *Recorder) ObserveMatch(mode, status string, d time.Duration, scanned int) {
	if r == nil {
		return
	}
	r.searchLatency.WithLabelValues(mode).Observe(d.Seconds())
	r.searchRequests.WithLabelValues(mode, status).Inc()
	r.candidates.Add(float64(scanned))
}

// CacheLookup records an embedding cache hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	r.cacheLookups.WithLabelValues("miss").Inc()
}

// ItemIndexed records the final status of an indexed media item.
func (r *Recorder) ItemIndexed(status string) {
	if r == nil {
		return
	}
	r.indexedItems.WithLabelValues(status).Inc()
}

// Handler returns an HTTP handler serving the registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
