// Package metrics provides Prometheus instrumentation for the scoring engine.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credit_engine",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "credit_engine",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ScoringRunsTotal counts scoring runs by outcome.
	ScoringRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credit_engine",
			Name:      "scoring_runs_total",
			Help:      "Total scoring runs by outcome.",
		},
		[]string{"outcome"},
	)

	// TransactionsProcessedTotal counts raw records accepted into runs.
	TransactionsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "credit_engine",
		Name:      "transactions_processed_total",
		Help:      "Total raw transaction records submitted to completed runs.",
	})

	// TransactionsDroppedTotal counts records the normalizer discarded.
	TransactionsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "credit_engine",
		Name:      "transactions_dropped_total",
		Help:      "Total malformed records dropped during normalization.",
	})

	// WalletsScoredTotal counts scored wallets across all runs.
	WalletsScoredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "credit_engine",
		Name:      "wallets_scored_total",
		Help:      "Total wallets scored across all completed runs.",
	})

	// PipelineDuration observes end-to-end scoring run duration.
	PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "credit_engine",
		Name:      "pipeline_duration_seconds",
		Help:      "End-to-end scoring run duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	})

	// LastRunWallets tracks the wallet count of the most recent run.
	LastRunWallets = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "credit_engine",
		Name:      "last_run_wallets",
		Help:      "Wallet count of the most recently completed run.",
	})

	// ActiveWebSocketClients tracks connected WebSocket subscribers.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "credit_engine",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})

	// DBTotalConns tracks total pool connections.
	DBTotalConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "credit_engine", Name: "db_total_connections",
		Help: "Total connections in the Postgres pool.",
	})
	// DBIdleConns tracks idle pool connections.
	DBIdleConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "credit_engine", Name: "db_idle_connections",
		Help: "Idle connections in the Postgres pool.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "credit_engine", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ScoringRunsTotal,
		TransactionsProcessedTotal,
		TransactionsDroppedTotal,
		WalletsScoredTotal,
		PipelineDuration,
		LastRunWallets,
		ActiveWebSocketClients,
		DBTotalConns,
		DBIdleConns,
		GoroutineCount,
	)
}

// ObserveRun records the counters for one completed scoring run.
func ObserveRun(seconds float64, processed, dropped, wallets int) {
	ScoringRunsTotal.WithLabelValues("completed").Inc()
	TransactionsProcessedTotal.Add(float64(processed))
	TransactionsDroppedTotal.Add(float64(dropped))
	WalletsScoredTotal.Add(float64(wallets))
	PipelineDuration.Observe(seconds)
	LastRunWallets.Set(float64(wallets))
}

// ObserveRunFailure records a run that started but did not complete.
func ObserveRunFailure() {
	ScoringRunsTotal.WithLabelValues("failed").Inc()
}

// ObserveRunRejected records a batch rejected before the pipeline ran.
func ObserveRunRejected() {
	ScoringRunsTotal.WithLabelValues("rejected").Inc()
}

// StartPoolStatsCollector periodically samples pgxpool stats and the
// runtime goroutine count into Prometheus gauges. Call in a goroutine;
// exits when ctx is done.
func StartPoolStatsCollector(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := pool.Stat()
			DBTotalConns.Set(float64(stat.TotalConns()))
			DBIdleConns.Set(float64(stat.IdleConns()))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
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

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
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
