package telemetry

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for transit scans.
type Metrics struct {
	config MetricsConfig

	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	activeScans  prometheus.Gauge

	// Detection metrics
	transitsDetected    *prometheus.CounterVec
	bisectionIterations prometheus.Histogram

	// Integrator metrics
	integratorSteps *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// Store metrics
	runsStored *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Every Record method is a no-op on an empty Metrics.
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

		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Total number of transit scans",
			},
			[]string{"integrator", "status"},
		),
		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Wall-clock duration of transit scans in seconds",
				Buckets:   buckets,
			},
			[]string{"integrator"},
		),
		activeScans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_scans",
				Help:      "Current number of running scans",
			},
		),

		transitsDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transits_detected_total",
				Help:      "Total number of transits recorded",
			},
			[]string{"body"},
		),
		bisectionIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bisection_iterations",
				Help:      "Bisection iterations needed per transit",
				Buckets:   prometheus.LinearBuckets(0, 4, 12),
			},
		),

		integratorSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "integrator_steps_total",
				Help:      "Total number of internal integrator steps",
			},
			[]string{"integrator"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		runsStored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_stored_total",
				Help:      "Total number of runs persisted to the store",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.scansTotal,
		m.scanDuration,
		m.activeScans,
		m.transitsDetected,
		m.bisectionIterations,
		m.integratorSteps,
		m.errorsByClass,
		m.errorsByCode,
		m.runsStored,
	)

	return m, nil
}

// Scan Metrics

// ScanStarted increments the active scan gauge.
func (m *Metrics) ScanStarted() {
	if m.activeScans == nil {
		return
	}
	m.activeScans.Inc()
}

// RecordScan records a finished scan with its status and duration.
func (m *Metrics) RecordScan(integrator, status string, duration time.Duration) {
	if m.scansTotal == nil {
		return
	}
	m.scansTotal.WithLabelValues(integrator, status).Inc()
	m.scanDuration.WithLabelValues(integrator).Observe(duration.Seconds())
	m.activeScans.Dec()
}

// Detection Metrics

// RecordTransit records one transit and the bisection work it took.
func (m *Metrics) RecordTransit(body string, iterations int) {
	if m.transitsDetected == nil {
		return
	}
	m.transitsDetected.WithLabelValues(body).Inc()
	m.bisectionIterations.Observe(float64(iterations))
}

// Integrator Metrics

// AddIntegratorSteps adds n internal steps for the given integrator.
func (m *Metrics) AddIntegratorSteps(integrator string, n int64) {
	if m.integratorSteps == nil || n <= 0 {
		return
	}
	m.integratorSteps.WithLabelValues(integrator).Add(float64(n))
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	if errorClass == "" {
		errorClass = "unclassified"
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Store Metrics

// RecordRunStored records a run persisted with the given status.
func (m *Metrics) RecordRunStored(status string) {
	if m.runsStored == nil {
		return
	}
	m.runsStored.WithLabelValues(status).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Registry returns the metrics registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
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

// StartMetricsServer starts an HTTP server to expose metrics. The listener is
// bound before returning so address errors surface to the caller.
func (m *Metrics) StartMetricsServer() (*http.Server, error) {
	if !m.config.Enabled {
		return nil, nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	ln, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", m.config.ListenAddress, err)
	}

	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	return server, nil
}
