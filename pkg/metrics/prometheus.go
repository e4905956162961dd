// Package metrics provides Prometheus metrics for the modelrank ledger service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the modelrank service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ledger Metrics - What the state machine is doing
	ledgerOperations       *prometheus.CounterVec
	ledgerOperationLatency *prometheus.HistogramVec
	leaderboardRecomputes  *prometheus.CounterVec
	escrowTransfers        *prometheus.CounterVec
	idempotentReplays      prometheus.Counter

	// Platform Gauges - Mirrors of the platform record
	modelsTotal      prometheus.Gauge
	modelsActive     prometheus.Gauge
	evaluationsTotal prometheus.Gauge
	stakedTotal      prometheus.Gauge

	// Ranking Index Metrics
	rankingIndexSize     prometheus.Gauge
	rankingUpdateLatency prometheus.Histogram
	rankingQueryLatency  prometheus.Histogram

	// Store Metrics - Transaction timings per backend
	storeTxLatency *prometheus.HistogramVec
	storeErrors    *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "modelrank",
		subsystem:        "ledger",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.ledgerOperations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "operations_total",
			Help:      "Total number of ledger operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	m.ledgerOperationLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "operation_latency_milliseconds",
			Help:      "Ledger operation latency in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"operation"},
	)

	m.leaderboardRecomputes = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "leaderboard_recomputes_total",
			Help:      "Total number of category leaderboard recomputations",
		},
		[]string{"category"},
	)

	m.escrowTransfers = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "escrow_transfers_total",
			Help:      "Total number of escrow transfers by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	m.idempotentReplays = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "idempotent_replays_total",
		Help:      "Total number of requests rejected for reusing an idempotency key",
	})

	m.modelsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "models_total",
		Help:      "Total number of registered models",
	})

	m.modelsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "models_active",
		Help:      "Number of models that can still be evaluated",
	})

	m.evaluationsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluations_total",
		Help:      "Total number of evaluations recorded",
	})

	m.stakedTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "staked_amount",
		Help:      "Amount currently held in escrow for active stakes",
	})

	m.rankingIndexSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranking_index_size",
		Help:      "Number of models tracked by the in-memory ranking index",
	})

	m.rankingUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranking_update_latency_milliseconds",
		Help:      "Ranking index update latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.rankingQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranking_query_latency_milliseconds",
		Help:      "Ranking index query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeTxLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_transaction_latency_milliseconds",
			Help:      "Store transaction latency in milliseconds by backend and kind",
			Buckets:   m.histogramBuckets,
		},
		[]string{"backend", "kind"},
	)

	m.storeErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_errors_total",
			Help:      "Total number of failed store transactions",
		},
		[]string{"backend", "kind"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of operations that resulted in errors",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Ledger Metrics Functions.

// RecordLedgerOperation increments the operation counter for op with the given outcome.
func RecordLedgerOperation(op, outcome string) {
	globalManager.ledgerOperations.WithLabelValues(op, outcome).Inc()
}

// RecordLedgerOperationLatency records how long a ledger operation took.
func RecordLedgerOperationLatency(op string, latencyMs float64) {
	globalManager.ledgerOperationLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordLeaderboardRecompute counts one recomputation of a category ranking.
func RecordLeaderboardRecompute(category string) {
	globalManager.leaderboardRecomputes.WithLabelValues(category).Inc()
}

// RecordEscrowTransfer counts an escrow transfer. direction is "deposit",
// "refund" or "compensate".
func RecordEscrowTransfer(direction, outcome string) {
	globalManager.escrowTransfers.WithLabelValues(direction, outcome).Inc()
}

// RecordIdempotentReplay counts a request rejected for a reused key.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// UpdatePlatformTotals mirrors the platform record into gauges.
func UpdatePlatformTotals(models, active, evaluations, staked uint64) {
	globalManager.modelsTotal.Set(float64(models))
	globalManager.modelsActive.Set(float64(active))
	globalManager.evaluationsTotal.Set(float64(evaluations))
	globalManager.stakedTotal.Set(float64(staked))
}

// Ranking Metrics Functions.

// UpdateRankingIndexSize sets the number of models in the ranking index.
func UpdateRankingIndexSize(count int) {
	globalManager.rankingIndexSize.Set(float64(count))
}

// RecordRankingUpdateLatency records ranking index update latency.
func RecordRankingUpdateLatency(latencyMs float64) {
	globalManager.rankingUpdateLatency.Observe(latencyMs)
}

// RecordRankingQueryLatency records ranking index query latency.
func RecordRankingQueryLatency(latencyMs float64) {
	globalManager.rankingQueryLatency.Observe(latencyMs)
}

// Store Metrics Functions.

// RecordStoreTransaction records the latency of a store transaction.
// kind is "update" or "view".
func RecordStoreTransaction(backend, kind string, latencyMs float64) {
	globalManager.storeTxLatency.WithLabelValues(backend, kind).Observe(latencyMs)
}

// RecordStoreError counts a failed store transaction.
func RecordStoreError(backend, kind string) {
	globalManager.storeErrors.WithLabelValues(backend, kind).Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Enhanced Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
