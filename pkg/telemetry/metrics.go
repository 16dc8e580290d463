package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the import pipeline.
// All record methods are safe on a nil receiver so callers never need
// to check whether metrics are wired.
type Metrics struct {
	config MetricsConfig

	importsStarted   prometheus.Counter
	importsCompleted *prometheus.CounterVec
	importDuration   *prometheus.HistogramVec

	actionsReconciled *prometheus.CounterVec
	errorsByKind      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		importsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_started_total",
				Help:      "Total number of package imports started",
			},
		),
		importsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_completed_total",
				Help:      "Total number of package imports completed",
			},
			[]string{"status"},
		),
		importDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_duration_seconds",
				Help:      "Duration of package imports in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		actionsReconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_reconciled_total",
				Help:      "Total number of catalog action mutations by kind",
			},
			[]string{"mutation"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_errors_total",
				Help:      "Total number of import failures by error kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.importsStarted,
		m.importsCompleted,
		m.importDuration,
		m.actionsReconciled,
		m.errorsByKind,
	)

	return m, nil
}

// RecordImportStarted increments the counter for started imports.
func (m *Metrics) RecordImportStarted() {
	if m == nil || m.importsStarted == nil {
		return
	}
	m.importsStarted.Inc()
}

// RecordImportCompleted records a finished import with its status and duration.
func (m *Metrics) RecordImportCompleted(status string, duration time.Duration) {
	if m == nil || m.importsCompleted == nil {
		return
	}
	m.importsCompleted.WithLabelValues(status).Inc()
	m.importDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordActionMutation records one catalog mutation
// (inserted, updated or disabled).
func (m *Metrics) RecordActionMutation(mutation string) {
	if m == nil || m.actionsReconciled == nil {
		return
	}
	m.actionsReconciled.WithLabelValues(mutation).Inc()
}

// RecordError records an import failure by error kind.
func (m *Metrics) RecordError(kind string) {
	if m == nil || m.errorsByKind == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if m == nil || !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
