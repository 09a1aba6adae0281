package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Path = "/metrics"

// LedgerMetrics counts ledger operations by outcome and records their latency.
type LedgerMetrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger collectors on a dedicated registry.
func NewLedgerMetrics() (*LedgerMetrics, error) {
	registry := prometheus.NewRegistry()
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voteledger_operations_total",
		Help: "Ledger operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voteledger_operation_duration_seconds",
		Help:    "Ledger operation latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	for _, collector := range []prometheus.Collector{operations, duration} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return &LedgerMetrics{
		registry:   registry,
		operations: operations,
		duration:   duration,
	}, nil
}

// Observe records one finished operation. Outcome is "ok" or an error code.
func (m *LedgerMetrics) Observe(operation string, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *LedgerMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *LedgerMetrics) Registry() *prometheus.Registry {
	return m.registry
}
