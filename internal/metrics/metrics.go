// Package metrics provides Prometheus instrumentation for the FraudGate service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudgate",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudgate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DecisionsTotal counts fraud decisions by source and outcome.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudgate",
			Name:      "decisions_total",
			Help:      "Total fraud decisions by source (rule/model) and outcome (fraud/legit).",
		},
		[]string{"source", "outcome"},
	)

	// RuleMatchesTotal counts transactions decided by a rule.
	RuleMatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudgate",
		Name:      "rule_matches_total",
		Help:      "Total transactions short-circuited by a matching rule.",
	})

	// RuleEvalErrorsTotal counts rule conditions that failed to evaluate.
	// A rising rate means someone authored a broken rule.
	RuleEvalErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudgate",
		Name:      "rule_eval_errors_total",
		Help:      "Total rule condition evaluation failures (rule skipped).",
	})

	// ModelScore observes the raw classifier probability distribution.
	ModelScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudgate",
		Name:      "model_score",
		Help:      "Distribution of classifier fraud probabilities.",
		Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95},
	})

	// BatchSize observes the number of transactions per batch request.
	BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudgate",
		Name:      "batch_size",
		Help:      "Transactions per batch decision request.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	// DuplicateDecisionsTotal counts decision writes rejected by the
	// write-once transaction id constraint.
	DuplicateDecisionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudgate",
		Name:      "duplicate_decisions_total",
		Help:      "Total decision writes rejected because the transaction id was already decided.",
	})

	// ReportsTotal counts fraud report submissions by result.
	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudgate",
			Name:      "fraud_reports_total",
			Help:      "Total fraud report submissions by result (accepted/duplicate/error).",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected decision-feed clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudgate",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudgate", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudgate", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudgate", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudgate", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DecisionsTotal,
		RuleMatchesTotal,
		RuleEvalErrorsTotal,
		ModelScore,
		BatchSize,
		DuplicateDecisionsTotal,
		ReportsTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and the runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits when
// ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
