package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the evidence aggregation service.
// Metrics are organized by subsystem: pipeline runs, source adapters, dedup,
// and the result cache. All counters and histograms are registered via promauto
// with the registerer passed to NewMetrics.
type Metrics struct {
	// SearchesStarted counts pipeline runs initiated.
	SearchesStarted prometheus.Counter

	// SearchesByOutcome counts finished runs, labeled by outcome
	// (complete, partial, no_results, deadline_exceeded).
	SearchesByOutcome *prometheus.CounterVec

	// SearchDuration observes end-to-end pipeline duration in seconds.
	SearchDuration prometheus.Histogram

	// SourceFetches counts adapter fetches, labeled by source.
	SourceFetches *prometheus.CounterVec

	// SourceFetchFailures counts failed adapter fetches, labeled by source.
	SourceFetchFailures *prometheus.CounterVec

	// SourceFetchDuration observes adapter fetch duration in seconds, labeled by source.
	SourceFetchDuration *prometheus.HistogramVec

	// RecordsPerSource observes the raw record count each adapter returned.
	RecordsPerSource *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited provider responses, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// DuplicatesCollapsed counts records merged away by the deduplicator.
	DuplicatesCollapsed prometheus.Counter

	// TierReached counts runs by the filter tier that satisfied them.
	TierReached *prometheus.CounterVec

	// CacheHits counts result-cache hits.
	CacheHits prometheus.Counter

	// CacheMisses counts result-cache misses.
	CacheMisses prometheus.Counter
}

// NewMetrics creates a Metrics instance registered with reg.
// The namespace is used as a prefix for all metric names.
// Passing prometheus.DefaultRegisterer wires the default /metrics handler.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SearchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of pipeline runs started",
		}),
		SearchesByOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_finished_total",
			Help:      "Total number of pipeline runs finished, by outcome",
		}, []string{"outcome"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end pipeline run duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SourceFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Total adapter fetches, by source",
		}, []string{"source"}),
		SourceFetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_failures_total",
			Help:      "Total failed adapter fetches, by source",
		}, []string{"source"}),
		SourceFetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Adapter fetch duration in seconds, by source",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		RecordsPerSource: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_per_source",
			Help:      "Raw records returned per adapter fetch, by source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}, []string{"source"}),
		SourceRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Rate-limited responses from providers, by source",
		}, []string{"source"}),
		DuplicatesCollapsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_collapsed_total",
			Help:      "Records merged away by the deduplicator",
		}),
		TierReached: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_tier_reached_total",
			Help:      "Pipeline runs by the filter tier that satisfied them",
		}, []string{"tier"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_hits_total",
			Help:      "Result cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_misses_total",
			Help:      "Result cache misses",
		}),
	}
}
