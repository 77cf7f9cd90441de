// Package observability provides Prometheus metrics for the streaming core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the core records into one registry.
type Metrics struct {
	registry *prometheus.Registry

	cacheHitsTotal      *prometheus.CounterVec
	cacheMissesTotal    prometheus.Counter
	cacheEvictionsTotal *prometheus.CounterVec
	cacheSizeBytes      *prometheus.GaugeVec

	chunkProcessDuration *prometheus.HistogramVec
	chunkProcessErrors   *prometheus.CounterVec

	activeStreams    prometheus.Gauge
	chunksEmitted    prometheus.Counter
	streamErrors     *prometheus.CounterVec
	degradationLevel prometheus.Gauge
	workerItems      *prometheus.CounterVec
}

// NewMetrics creates the metric set on a fresh registry.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry creates the metric set on the given registry.
func NewMetricsWithRegistry(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auralis_cache_hits_total",
			Help: "Chunk cache hits by tier",
		}, []string{"tier"}),
		cacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auralis_cache_misses_total",
			Help: "Chunk cache misses",
		}),
		cacheEvictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auralis_cache_evictions_total",
			Help: "Chunk cache evictions by tier",
		}, []string{"tier"}),
		cacheSizeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "auralis_cache_size_bytes",
			Help: "Current cache payload bytes by tier",
		}, []string{"tier"}),
		chunkProcessDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auralis_chunk_process_duration_seconds",
			Help:    "Chunk processing duration by preset",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"preset"}),
		chunkProcessErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auralis_chunk_process_errors_total",
			Help: "Chunk processing failures by category",
		}, []string{"category"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auralis_active_streams",
			Help: "Streaming sessions currently emitting",
		}),
		chunksEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auralis_chunks_emitted_total",
			Help: "Chunks emitted to clients",
		}),
		streamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auralis_stream_errors_total",
			Help: "Stream errors by code",
		}, []string{"code"}),
		degradationLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auralis_degradation_level",
			Help: "Current memory degradation level (0-3)",
		}),
		workerItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auralis_worker_items_total",
			Help: "Cache worker items by priority and outcome",
		}, []string{"priority", "outcome"}),
	}

	collectors := []prometheus.Collector{
		m.cacheHitsTotal, m.cacheMissesTotal, m.cacheEvictionsTotal,
		m.cacheSizeBytes, m.chunkProcessDuration, m.chunkProcessErrors,
		m.activeStreams, m.chunksEmitted, m.streamErrors,
		m.degradationLevel, m.workerItems,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry exposes the underlying registry for the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCacheHit counts a hit on the named tier.
func (m *Metrics) RecordCacheHit(tier string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.WithLabelValues(tier).Inc()
}

// RecordCacheMiss counts a miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMissesTotal.Inc()
}

// RecordCacheEviction counts an eviction from the named tier.
func (m *Metrics) RecordCacheEviction(tier string) {
	if m == nil {
		return
	}
	m.cacheEvictionsTotal.WithLabelValues(tier).Inc()
}

// SetCacheSize reports the current payload bytes of a tier.
func (m *Metrics) SetCacheSize(tier string, bytes int64) {
	if m == nil {
		return
	}
	m.cacheSizeBytes.WithLabelValues(tier).Set(float64(bytes))
}

// ObserveChunkProcess records a chunk processing duration.
func (m *Metrics) ObserveChunkProcess(preset string, seconds float64) {
	if m == nil {
		return
	}
	m.chunkProcessDuration.WithLabelValues(preset).Observe(seconds)
}

// RecordChunkProcessError counts a processing failure.
func (m *Metrics) RecordChunkProcessError(category string) {
	if m == nil {
		return
	}
	m.chunkProcessErrors.WithLabelValues(category).Inc()
}

// StreamStarted/StreamEnded track the active stream gauge.
func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

func (m *Metrics) StreamEnded() {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
}

// RecordChunkEmitted counts one emitted chunk.
func (m *Metrics) RecordChunkEmitted() {
	if m == nil {
		return
	}
	m.chunksEmitted.Inc()
}

// RecordStreamError counts a stream error by code.
func (m *Metrics) RecordStreamError(code string) {
	if m == nil {
		return
	}
	m.streamErrors.WithLabelValues(code).Inc()
}

// SetDegradationLevel reports the memory degradation level.
func (m *Metrics) SetDegradationLevel(level int) {
	if m == nil {
		return
	}
	m.degradationLevel.Set(float64(level))
}

// RecordWorkerItem counts a worker item outcome for a priority.
func (m *Metrics) RecordWorkerItem(priority, outcome string) {
	if m == nil {
		return
	}
	m.workerItems.WithLabelValues(priority, outcome).Inc()
}
