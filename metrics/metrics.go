package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultNamespace = "promptctl"
)

// Config defines configuration for promptctl metrics
type Config struct {
	Namespace string // default: "promptctl"
}

// Metrics holds all Prometheus collectors. Each instance owns a private
// registry, so several can coexist in one process (tests do).
type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	CredentialOperations *prometheus.CounterVec
	ValidationFailures   *prometheus.CounterVec
	OutputWrites         *prometheus.CounterVec
	OutputBytes          prometheus.Counter
	BackendRequests      *prometheus.CounterVec
	HTTPAttempts         *prometheus.CounterVec
	HTTPRetries          prometheus.Counter
	StoreErrors          *prometheus.CounterVec
	StoreDuration        *prometheus.HistogramVec
}

// New creates a new Metrics instance with the given configuration
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		namespace: cfg.Namespace,
		registry:  reg,
	}

	m.CredentialOperations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "vault",
			Name:      "operations_total",
			Help:      "Credential vault operations by outcome",
		},
		[]string{"operation", "status"},
	)

	m.ValidationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "request",
			Name:      "validation_failures_total",
			Help:      "Rejected generation requests by error kind",
		},
		[]string{"kind"},
	)

	m.OutputWrites = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "output",
			Name:      "writes_total",
			Help:      "Artifact writes by outcome",
		},
		[]string{"status"},
	)

	m.OutputBytes = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "output",
			Name:      "bytes_written_total",
			Help:      "Bytes written to artifact files",
		},
	)

	m.BackendRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Generation requests by backend and outcome",
		},
		[]string{"backend", "status"},
	)

	m.HTTPAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "attempts_total",
			Help:      "HTTP attempts made by backends, by outcome",
		},
		[]string{"status"},
	)

	m.HTTPRetries = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "retries_total",
			Help:      "HTTP retries made by backends",
		},
	)

	m.StoreErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Credential store errors by backend and kind",
		},
		[]string{"backend", "kind"},
	)

	m.StoreDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of credential store operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "backend"},
	)

	return m
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCredentialOperation counts a vault operation
func (m *Metrics) RecordCredentialOperation(operation, status string) {
	m.CredentialOperations.WithLabelValues(operation, status).Inc()
}

// RecordValidationFailure counts a rejected request
func (m *Metrics) RecordValidationFailure(kind string) {
	m.ValidationFailures.WithLabelValues(kind).Inc()
}

// RecordOutputWrite counts an artifact write
func (m *Metrics) RecordOutputWrite(status string, bytes int) {
	m.OutputWrites.WithLabelValues(status).Inc()
	if bytes > 0 {
		m.OutputBytes.Add(float64(bytes))
	}
}

// RecordBackendRequest counts a dispatched generation request
func (m *Metrics) RecordBackendRequest(backend, status string) {
	m.BackendRequests.WithLabelValues(backend, status).Inc()
}

// OnRequest records one HTTP attempt
func (m *Metrics) OnRequest(status string) {
	m.HTTPAttempts.WithLabelValues(status).Inc()
}

// OnRetry records one HTTP retry
func (m *Metrics) OnRetry() {
	m.HTTPRetries.Inc()
}

// RecordStoreError counts a store failure
func (m *Metrics) RecordStoreError(backend, kind string) {
	m.StoreErrors.WithLabelValues(backend, kind).Inc()
}

// TimeStoreOperation returns a timer function for measuring store operation duration
func (m *Metrics) TimeStoreOperation(operation, backend string) func() {
	timer := prometheus.NewTimer(m.StoreDuration.WithLabelValues(operation, backend))
	return func() {
		timer.ObserveDuration()
	}
}

// WriteTextfile dumps every collected series in the text exposition format,
// for node_exporter's textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
