// Package telemetry provides application-level observability for ResolveIt.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<RSK_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - API key verification counters, by outcome
//   - Expired key sweeper counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/apps/:id/api-keys)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as app or key IDs.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening:
//
//	import _ "github.com/resolveit/resolveit/internal/telemetry"
//
// Or import it directly and use an exported var:
//
//	telemetry.APIKeyVerificationsTotal.WithLabelValues("success").Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /api/v1/apps/:id/api-keys),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
//
// Example PromQL queries:
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
//   - Average latency:                   rate(http_request_duration_seconds_sum[5m]) / rate(http_request_duration_seconds_count[5m])
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// APIKeyVerificationsTotal is a CounterVec with label {result} incremented once per
// public API key verification attempt.  Result values: "success", "invalid_key",
// "app_inactive", "ip_not_whitelisted", "error".
//
// A sustained rate of "invalid_key" outcomes from a single source is the primary
// brute-force signal; pair it with the rate limiter's 429 counts in http_requests_total.
//
// Example PromQL queries:
//   - Failed verification rate:  sum(rate(apikey_verifications_total{result!="success"}[5m]))
//   - Success ratio:             sum(rate(apikey_verifications_total{result="success"}[5m])) / sum(rate(apikey_verifications_total[5m]))
var APIKeyVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "apikey_verifications_total",
		Help: "Total number of API key verification attempts, by outcome.",
	},
	[]string{"result"},
)

// Verification result label values for APIKeyVerificationsTotal.
const (
	VerifyResultSuccess          = "success"
	VerifyResultInvalidKey       = "invalid_key"
	VerifyResultAppInactive      = "app_inactive"
	VerifyResultIPNotWhitelisted = "ip_not_whitelisted"
	VerifyResultError            = "error"
)

// ExpiredKeysDeactivatedTotal is a plain Counter (no labels) incremented by the
// expiry sweeper job for every key it flips to inactive.  Verification rejects
// expired keys regardless; this tracks housekeeping progress only.
//
// Example PromQL queries:
//   - Keys expired per day:  increase(expired_apikeys_deactivated_total[24h])
var ExpiredKeysDeactivatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "expired_apikeys_deactivated_total",
		Help: "Total number of expired API keys deactivated by the sweeper job.",
	},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <RSK_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
