// Package metrics exposes Prometheus instrumentation for the data access layer
// and the scoring engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source call outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeCacheHit    = "cache_hit"
	OutcomeRateLimited = "rate_limited"
	OutcomeUnavailable = "unavailable"
)

// Metrics holds every collector on its own registry so tests can create
// independent instances.
type Metrics struct {
	registry *prometheus.Registry

	SourceRequests *prometheus.CounterVec
	SourceRetries  *prometheus.CounterVec
	SourceLatency  *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec
	ScoredTotal    *prometheus.CounterVec
	BatchDuration  prometheus.Histogram
	DatasetSize    prometheus.Gauge
	DatasetReloads *prometheus.CounterVec
}

// New creates and registers all collectors, including Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SourceRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cornerstone_source_requests_total",
			Help: "External source calls by outcome",
		}, []string{"source", "outcome"}),
		SourceRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cornerstone_source_retries_total",
			Help: "Retries spent on external source calls",
		}, []string{"source"}),
		SourceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cornerstone_source_request_duration_seconds",
			Help:    "Latency of external source calls that reached the network",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cornerstone_cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"source", "result"}),
		ScoredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cornerstone_properties_scored_total",
			Help: "Properties scored by profile",
		}, []string{"profile"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cornerstone_batch_scoring_duration_seconds",
			Help:    "Duration of batch ranking runs",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		DatasetSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cornerstone_dataset_properties",
			Help: "Number of property records currently loaded",
		}),
		DatasetReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cornerstone_dataset_reloads_total",
			Help: "Dataset reloads by result",
		}, []string{"result"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSource records one external call. A nil receiver is a no-op so
// clients can run without instrumentation.
func (m *Metrics) ObserveSource(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SourceRequests.WithLabelValues(source, outcome).Inc()
	if outcome == OutcomeSuccess || outcome == OutcomeUnavailable {
		m.SourceLatency.WithLabelValues(source).Observe(elapsed.Seconds())
	}
}

// ObserveRetry counts one retry for source.
func (m *Metrics) ObserveRetry(source string) {
	if m == nil {
		return
	}
	m.SourceRetries.WithLabelValues(source).Inc()
}

// ObserveCache records a cache lookup as "hit" or "miss".
func (m *Metrics) ObserveCache(source string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(source, result).Inc()
}

// ObserveBatch records a batch ranking run.
func (m *Metrics) ObserveBatch(profile string, n int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScoredTotal.WithLabelValues(profile).Add(float64(n))
	m.BatchDuration.Observe(elapsed.Seconds())
}

// ObserveReload records a dataset reload.
func (m *Metrics) ObserveReload(size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DatasetReloads.WithLabelValues("error").Inc()
		return
	}
	m.DatasetReloads.WithLabelValues("success").Inc()
	m.DatasetSize.Set(float64(size))
}

// SetDatasetSize sets the loaded-properties gauge.
func (m *Metrics) SetDatasetSize(size int) {
	if m == nil {
		return
	}
	m.DatasetSize.Set(float64(size))
}
