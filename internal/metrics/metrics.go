// Package metrics exposes Prometheus collectors for the search service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skyfare/flightsearch/internal/flights"
)

// SearchMetrics owns all collectors for search lifecycle and per-source
// settlement accounting. A nil *SearchMetrics is a valid no-op receiver so
// callers need no conditionals.
type SearchMetrics struct {
	searchesStarted   prometheus.Counter
	searchesCompleted *prometheus.CounterVec
	searchesActive    prometheus.Gauge
	searchDuration    *prometheus.HistogramVec

	sourceSettlements *prometheus.CounterVec
	sourceLatency     *prometheus.HistogramVec

	cacheEntries    prometheus.Gauge
	archiveFailed   prometheus.Counter
	eventsDropped   prometheus.Counter
	rejectedArrival prometheus.Counter
}

// New registers the collectors against the provided registry.
func New(reg prometheus.Registerer) (*SearchMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &SearchMetrics{
		searchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flightsearch_searches_started_total",
			Help: "Total searches admitted and dispatched.",
		}),
		searchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsearch_searches_completed_total",
			Help: "Total searches reaching a terminal state, by status.",
		}, []string{"status"}),
		searchesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flightsearch_searches_active",
			Help: "Current number of non-terminal searches.",
		}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightsearch_search_duration_seconds",
			Help:    "Wall time per terminal search, by status.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"status"}),
		sourceSettlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsearch_source_settlements_total",
			Help: "Source settlements partitioned by source and outcome.",
		}, []string{"source", "outcome"}),
		sourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightsearch_source_latency_seconds",
			Help:    "Per-source call latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flightsearch_cache_entries",
			Help: "Live raw result views in the cache.",
		}),
		archiveFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flightsearch_archive_failures_total",
			Help: "Archival attempts that failed.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flightsearch_events_dropped_total",
			Help: "Push events dropped due to slow subscribers.",
		}),
		rejectedArrival: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flightsearch_searches_rejected_total",
			Help: "Searches rejected by admission control.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		m.searchesStarted,
		m.searchesCompleted,
		m.searchesActive,
		m.searchDuration,
		m.sourceSettlements,
		m.sourceLatency,
		m.cacheEntries,
		m.archiveFailed,
		m.eventsDropped,
		m.rejectedArrival,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register search collector: %w", err)
		}
	}
	return m, nil
}

// SearchStarted records an admitted search.
func (m *SearchMetrics) SearchStarted() {
	if m == nil {
		return
	}
	m.searchesStarted.Inc()
	m.searchesActive.Inc()
}

// SearchRejected records an admission-control rejection.
func (m *SearchMetrics) SearchRejected() {
	if m == nil {
		return
	}
	m.rejectedArrival.Inc()
}

// SearchFinished records a terminal search.
func (m *SearchMetrics) SearchFinished(status flights.Status, dur time.Duration) {
	if m == nil {
		return
	}
	m.searchesCompleted.WithLabelValues(string(status)).Inc()
	m.searchesActive.Dec()
	if dur > 0 {
		m.searchDuration.WithLabelValues(string(status)).Observe(dur.Seconds())
	}
}

// SourceSettled records one source task outcome.
func (m *SearchMetrics) SourceSettled(source, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.sourceSettlements.WithLabelValues(source, outcome).Inc()
	if latency > 0 {
		m.sourceLatency.WithLabelValues(source).Observe(latency.Seconds())
	}
}

// SetCacheEntries publishes cache occupancy.
func (m *SearchMetrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}

// ArchiveFailed records one failed archival attempt.
func (m *SearchMetrics) ArchiveFailed() {
	if m == nil {
		return
	}
	m.archiveFailed.Inc()
}

// EventsDropped adds to the dropped-event counter.
func (m *SearchMetrics) EventsDropped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsDropped.Add(float64(n))
}
