// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grod220/validator-finances/internal/reconcile"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Reconciliation metrics
	PhaseRunsTotal *prometheus.CounterVec
	PhaseDuration  *prometheus.HistogramVec
	FactOutcomes   *prometheus.CounterVec
	CurrentEpoch   prometheus.Gauge

	// Chain RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Secondary source metrics
	BulkQueryDuration *prometheus.HistogramVec
	BulkRowsReturned  *prometheus.CounterVec

	// Transfer scan metrics
	SignaturesScanned  prometheus.Counter
	TransfersExtracted prometheus.Counter
	CursorSlot         *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "validator_finances"
	}

	return &Metrics{
		// Reconciliation metrics
		PhaseRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "phase_runs_total",
			Help:      "Total number of reconciliation phase runs by status",
		}, []string{"phase", "status"}),
		PhaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "phase_duration_seconds",
			Help:      "Reconciliation phase duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		FactOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "fact_outcomes_total",
			Help:      "Per-epoch fact outcomes by fact type and resolution path",
		}, []string{"fact_type", "outcome"}),
		CurrentEpoch: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "current_epoch",
			Help:      "Chain epoch observed at the start of the last run",
		}),

		// Chain RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "RPC call latency in seconds by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of RPC call errors by method",
		}, []string{"method"}),

		// Secondary source metrics
		BulkQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dune",
			Name:      "query_duration_seconds",
			Help:      "Bulk fallback query duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"query"}),
		BulkRowsReturned: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dune",
			Name:      "rows_returned_total",
			Help:      "Total rows returned by bulk fallback queries",
		}, []string{"query"}),

		// Transfer scan metrics
		SignaturesScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "signatures_scanned_total",
			Help:      "Total transaction signatures examined by the scanner",
		}),
		TransfersExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "extracted_total",
			Help:      "Total transfers extracted from scanned transactions",
		}),
		CursorSlot: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "cursor_slot",
			Help:      "Highest reconciled slot per tracked account",
		}, []string{"account"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful reconciliation run",
		}),
	}
}

// Observer bridges the reconciliation engine's hooks onto Prometheus.
type Observer struct {
	m *Metrics
}

var _ reconcile.Observer = (*Observer)(nil)

// NewObserver returns an Observer recording into m.
func NewObserver(m *Metrics) *Observer {
	return &Observer{m: m}
}

// ObservePhase records one phase's wall-clock duration.
func (o *Observer) ObservePhase(phase string, d time.Duration) {
	o.m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveCounts records how each fact type's epochs were resolved.
func (o *Observer) ObserveCounts(factType string, c reconcile.Counts) {
	add := func(outcome string, n int) {
		if n > 0 {
			o.m.FactOutcomes.WithLabelValues(factType, outcome).Add(float64(n))
		}
	}
	add("from_cache", c.FromCache)
	add("fetched", c.Fetched)
	add("negative_cached", c.NegativeCached)
	add("still_missing", c.StillMissing)
	add("estimated", c.Estimated)

	status := "ok"
	if c.StillMissing > 0 {
		status = "incomplete"
	}
	o.m.PhaseRunsTotal.WithLabelValues(factType, status).Inc()
}

// ObserveScan records one tracked account's signature scan.
func (o *Observer) ObserveScan(account string, signatures, transfers int, cursorSlot int64) {
	o.m.SignaturesScanned.Add(float64(signatures))
	o.m.TransfersExtracted.Add(float64(transfers))
	if cursorSlot > 0 {
		o.m.CursorSlot.WithLabelValues(account).Set(float64(cursorSlot))
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HealthHandler reports process liveness for /health.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError records an RPC call failure.
func RecordRPCError(method string) {
	DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
}

// RecordBulkQuery records a bulk fallback query.
func RecordBulkQuery(query string, seconds float64, rows int) {
	DefaultMetrics.BulkQueryDuration.WithLabelValues(query).Observe(seconds)
	DefaultMetrics.BulkRowsReturned.WithLabelValues(query).Add(float64(rows))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
