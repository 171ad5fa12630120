// Package telemetry provides application-level observability for the Portr admin server.
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<PORTR_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not part of the Gin router, so it stays
// off the public ingress and is never rate limited.
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/team/users/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPRequestsTotal counts requests by method, route template, and status code.
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests processed, labelled by method, route template, and status code.",
	},
	[]string{"method", "path", "status"},
)

// HTTPRequestDuration observes request latency by method and route template.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds, labelled by method and route template.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "path"},
)

// LoginAttemptsTotal counts password login attempts by outcome (success, wrong_password, unknown_user).
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "login_attempts_total",
		Help: "Password login attempts by outcome.",
	},
	[]string{"outcome"},
)

// ConnectionsCreatedTotal counts tunnel connection reservations by type (http, tcp).
var ConnectionsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "connections_created_total",
		Help: "Tunnel connections created (reserved), labelled by connection type.",
	},
	[]string{"type"},
)

// ConnectionsActiveGauge tracks the number of currently active tunnel connections.
var ConnectionsActiveGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "connections_active",
		Help: "Number of tunnel connections currently in the active state.",
	},
)

// SessionsReclaimedTotal counts expired sessions removed by the reclaimer.
var SessionsReclaimedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "sessions_reclaimed_total",
		Help: "Expired sessions deleted by the periodic reclaimer.",
	},
)

// ConnectionsReclaimedTotal counts abandoned reserved connections removed by the reclaimer.
var ConnectionsReclaimedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "connections_reclaimed_total",
		Help: "Abandoned reserved connections deleted by the periodic reclaimer.",
	},
)

// InviteEmailsTotal counts invite email dispatch attempts by outcome (sent, failed).
var InviteEmailsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "invite_emails_total",
		Help: "Team invite email dispatch attempts by outcome.",
	},
	[]string{"outcome"},
)

// DBConnectionsOpen reports the current number of open database connections.
var DBConnectionsOpen = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_connections_open",
		Help: "Open connections in the database pool.",
	},
)

// StartDBPoolCollector polls db.Stats() every interval and exports the open
// connection count. It runs until the process exits; there is exactly one pool
// per process so no stop mechanism is needed.
func StartDBPoolCollector(db *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			DBConnectionsOpen.Set(float64(stats.OpenConnections))
		}
	}()
	slog.Debug("database pool metrics collector started", "interval", interval)
}
