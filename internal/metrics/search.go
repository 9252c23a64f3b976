package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search Prometheus metrics.
var (
	WarmupLayersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geosuggest",
			Name:      "warmup_layers_total",
			Help:      "Warm-up layer outcomes",
		},
		[]string{"status"}, // "ok" / "failed"
	)

	WarmupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "geosuggest",
			Name:      "warmup_duration_seconds",
			Help:      "Full warm-up duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	IndexEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "geosuggest",
			Name:      "index_entries",
			Help:      "Entries held by the in-memory index",
		},
	)

	SuggestionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geosuggest",
			Name:      "suggestion_cache_total",
			Help:      "Suggestion cache hits and misses",
		},
		[]string{"mode", "result"}, // "hit" / "miss"
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geosuggest",
			Name:      "query_duration_seconds",
			Help:      "Suggestion query duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 3},
		},
		[]string{"mode", "source"}, // source: "cache" / "index" / "lazy" / "geocoder"
	)

	LazyLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geosuggest",
			Name:      "lazy_load_total",
			Help:      "Lazy loader passes by outcome",
		},
		[]string{"result"}, // "hit" / "empty" / "error" / "shared"
	)

	LiveQueryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geosuggest",
			Name:      "live_query_errors_total",
			Help:      "Failed live layer queries",
		},
		[]string{"error_type"}, // "timeout" / "unavailable" / "other"
	)

	StaleResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geosuggest",
			Name:      "stale_results_dropped_total",
			Help:      "Superseded query results dropped before display",
		},
		[]string{"mode"},
	)

	GeocoderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geosuggest",
			Name:      "geocoder_requests_total",
			Help:      "Geocoder requests",
		},
		[]string{"op", "status"},
	)

	GeocoderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geosuggest",
			Name:      "geocoder_request_duration_seconds",
			Help:      "Geocoder request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"op"},
	)
)

var registerOnce sync.Once

// RegisterSearchMetrics registers search metrics with the default registry. Safe to call more than once.
func RegisterSearchMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			WarmupLayersTotal,
			WarmupDuration,
			IndexEntries,
			SuggestionCacheTotal,
			QueryDuration,
			LazyLoadTotal,
			LiveQueryErrorsTotal,
			StaleResultsTotal,
			GeocoderRequestsTotal,
			GeocoderRequestDuration,
		)
	})
}

// ErrorType buckets an error for the error_type label.
func ErrorType(timeout, unavailable bool) string {
	switch {
	case timeout:
		return "timeout"
	case unavailable:
		return "unavailable"
	default:
		return "other"
	}
}
