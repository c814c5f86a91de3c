package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the resource manager.
type Metrics struct {
	config MetricsConfig

	// Sync metrics
	syncRunsStarted   *prometheus.CounterVec
	syncRunsCompleted *prometheus.CounterVec
	syncDuration      *prometheus.HistogramVec
	instancesUpserted *prometheus.CounterVec

	// Adapter metrics
	adapterCalls    *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	adapterErrors   *prometheus.CounterVec

	// Lifecycle operation metrics
	lifecycleOps        *prometheus.CounterVec
	lifecycleOpDuration *prometheus.HistogramVec

	// System metrics
	activeSyncs prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		syncRunsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_started_total",
				Help:      "Total number of reconciliation runs started",
			},
			[]string{"provider_type"},
		),
		syncRunsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_completed_total",
				Help:      "Total number of reconciliation runs completed",
			},
			[]string{"provider_type", "status"},
		),
		syncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Duration of reconciliation runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider_type", "status"},
		),
		instancesUpserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instances_upserted_total",
				Help:      "Total number of instances created or updated by reconciliation",
			},
			[]string{"provider_type"},
		),

		adapterCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "adapter_calls_total",
				Help:      "Total number of provider adapter calls",
			},
			[]string{"provider_type", "operation"},
		),
		adapterDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "adapter_call_duration_seconds",
				Help:      "Duration of provider adapter calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider_type", "operation"},
		),
		adapterErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "adapter_errors_total",
				Help:      "Total number of adapter errors by taxonomy code",
			},
			[]string{"provider_type", "code"},
		),

		lifecycleOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_operations_total",
				Help:      "Total number of instance lifecycle operations",
			},
			[]string{"provider_type", "operation", "status"},
		),
		lifecycleOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lifecycle_operation_duration_seconds",
				Help:      "Duration of lifecycle operations including the bounded wait",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"provider_type", "operation"},
		),

		activeSyncs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_syncs",
				Help:      "Current number of in-flight reconciliation runs",
			},
		),
	}

	registry.MustRegister(
		m.syncRunsStarted,
		m.syncRunsCompleted,
		m.syncDuration,
		m.instancesUpserted,
		m.adapterCalls,
		m.adapterDuration,
		m.adapterErrors,
		m.lifecycleOps,
		m.lifecycleOpDuration,
		m.activeSyncs,
	)

	return m, nil
}

// RecordSyncStarted increments the counter for started reconciliation runs.
func (m *Metrics) RecordSyncStarted(providerType string) {
	if m.syncRunsStarted == nil {
		return
	}
	m.syncRunsStarted.WithLabelValues(providerType).Inc()
	m.activeSyncs.Inc()
}

// RecordSyncCompleted records a finished reconciliation run.
func (m *Metrics) RecordSyncCompleted(providerType, status string, duration time.Duration, instances int) {
	if m.syncRunsCompleted == nil {
		return
	}
	m.syncRunsCompleted.WithLabelValues(providerType, status).Inc()
	m.syncDuration.WithLabelValues(providerType, status).Observe(duration.Seconds())
	m.instancesUpserted.WithLabelValues(providerType).Add(float64(instances))
	m.activeSyncs.Dec()
}

// RecordAdapterCall records an adapter call with its duration.
func (m *Metrics) RecordAdapterCall(providerType, operation string, duration time.Duration) {
	if m.adapterCalls == nil {
		return
	}
	m.adapterCalls.WithLabelValues(providerType, operation).Inc()
	m.adapterDuration.WithLabelValues(providerType, operation).Observe(duration.Seconds())
}

// RecordAdapterError records an adapter error by taxonomy code.
func (m *Metrics) RecordAdapterError(providerType, code string) {
	if m.adapterErrors == nil {
		return
	}
	m.adapterErrors.WithLabelValues(providerType, code).Inc()
}

// RecordLifecycleOperation records a start/stop/resize operation.
func (m *Metrics) RecordLifecycleOperation(providerType, operation, status string, duration time.Duration) {
	if m.lifecycleOps == nil {
		return
	}
	m.lifecycleOps.WithLabelValues(providerType, operation, status).Inc()
	m.lifecycleOpDuration.WithLabelValues(providerType, operation).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer(logger *Logger) error {
	if !m.config.Enabled {
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
			logger.WithError(err).Error("metrics server stopped")
		}
	}()

	return nil
}
