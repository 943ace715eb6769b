// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "songrec_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "songrec_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "songrec_websocket_connections",
			Help: "Number of open recommendation WebSocket connections",
		},
	)

	// Recommender Metrics
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songrec_recommendations_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"outcome"}, // "found", "not_found", "error"
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "songrec_recommendation_duration_seconds",
			Help:    "Time to produce a recommendation list, cover art included",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Catalog Metrics
	CatalogSongs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "songrec_catalog_songs",
			Help: "Number of songs in the loaded catalog",
		},
	)

	CatalogLoadDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "songrec_catalog_load_seconds",
			Help: "Time spent loading the catalog at startup",
		},
	)

	// Cover-art Metrics
	CoverLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songrec_cover_lookups_total",
			Help: "Cover-art lookups by where the answer came from",
		},
		[]string{"result"}, // "memo", "store", "found", "no_match", "error", "disabled"
	)

	CoverFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "songrec_cover_fetch_duration_seconds",
			Help:    "Latency of metadata service search calls",
			Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	CoverSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "songrec_cover_sessions",
			Help: "Live UI sessions holding a cover-art memo",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "songrec_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songrec_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRecommendation counts one recommendation request.
func RecordRecommendation(found bool, duration time.Duration) {
	outcome := "found"
	if !found {
		outcome = "not_found"
	}
	Recommendations.WithLabelValues(outcome).Inc()
	RecommendationDuration.Observe(duration.Seconds())
}

// RecordCoverLookup counts a cover-art lookup by result.
func RecordCoverLookup(result string) {
	CoverLookups.WithLabelValues(result).Inc()
}

// RecordCatalogLoad publishes catalog size and load time.
func RecordCatalogLoad(songs int, duration time.Duration) {
	CatalogSongs.Set(float64(songs))
	CatalogLoadDuration.Set(duration.Seconds())
}
