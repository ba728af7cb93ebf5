package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for openmon.
type Metrics struct {
	config MetricsConfig

	// Batch metrics
	batchesStarted prometheus.Counter
	phaseDuration  *prometheus.HistogramVec

	// Object metrics
	objectsCommitted *prometheus.CounterVec
	objectsIgnored   *prometheus.CounterVec
	activeObjects    prometheus.Gauge

	// Reload metrics
	reloads *prometheus.CounterVec

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

		batchesStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of commit batches started",
			},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of compiler phases in seconds",
				Buckets:   buckets,
			},
			[]string{"phase"},
		),

		objectsCommitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "objects_committed_total",
				Help:      "Total number of objects committed",
			},
			[]string{"type"},
		),
		objectsIgnored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "objects_ignored_total",
				Help:      "Total number of objects dropped by ignore_on_error",
			},
			[]string{"type"},
		),
		activeObjects: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_objects",
				Help:      "Current number of activated objects",
			},
		),

		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Total number of single-object reloads",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.batchesStarted,
		m.phaseDuration,
		m.objectsCommitted,
		m.objectsIgnored,
		m.activeObjects,
		m.reloads,
	)

	return m, nil
}

// IncBatches increments the counter for started commit batches.
func (m *Metrics) IncBatches() {
	if m.batchesStarted == nil {
		return
	}
	m.batchesStarted.Inc()
}

// ObservePhaseDuration records the duration of a compiler phase.
func (m *Metrics) ObservePhaseDuration(phase string, seconds float64) {
	if m.phaseDuration == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(seconds)
}

// IncObjectsCommitted increments the committed-object counter for a type.
func (m *Metrics) IncObjectsCommitted(objectType string) {
	if m.objectsCommitted == nil {
		return
	}
	m.objectsCommitted.WithLabelValues(objectType).Inc()
}

// IncObjectsIgnored increments the ignored-object counter for a type.
func (m *Metrics) IncObjectsIgnored(objectType string) {
	if m.objectsIgnored == nil {
		return
	}
	m.objectsIgnored.WithLabelValues(objectType).Inc()
}

// AddActiveObjects adjusts the active-object gauge by delta.
func (m *Metrics) AddActiveObjects(delta float64) {
	if m.activeObjects == nil {
		return
	}
	m.activeObjects.Add(delta)
}

// SetActiveObjects sets the active-object gauge.
func (m *Metrics) SetActiveObjects(count float64) {
	if m.activeObjects == nil {
		return
	}
	m.activeObjects.Set(count)
}

// IncReloads increments the reload counter with the given status.
func (m *Metrics) IncReloads(status string) {
	if m.reloads == nil {
		return
	}
	m.reloads.WithLabelValues(status).Inc()
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

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
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
func (m *Metrics) StartMetricsServer() error {
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
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
