// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthFailures counts rejected bearer tokens by failure kind.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_auth_failures_total",
		Help: "Total number of rejected bearer tokens by failure kind",
	}, []string{"kind"})

	// JWKSFetches counts key-set refresh attempts by outcome (ok, error, stale).
	JWKSFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_jwks_fetch_total",
		Help: "Total number of JWKS refresh attempts by outcome",
	}, []string{"result"})

	// LikeToggles counts like toggles by resulting state.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_like_toggles_total",
		Help: "Total number of like toggles by resulting state",
	}, []string{"result"})

	// EventPublishFailures counts best-effort event deliveries that failed, by sink.
	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_event_publish_failures_total",
		Help: "Total number of failed comment event deliveries by sink",
	}, []string{"sink"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ActiveStreams tracks open live comment streams.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "comments_active_streams",
		Help: "Number of open live comment websocket streams",
	})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "comments_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
