// Package metrics provides Prometheus metrics instrumentation for Personacore.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for Personacore.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	// Personality metrics
	emotionTransitions *prometheus.CounterVec
	emotionIntensity   prometheus.Gauge
	interactionsStored *prometheus.CounterVec
	engagementScores   prometheus.Histogram
	toneAdaptations    prometheus.Counter

	// Storage metrics
	storageFailures *prometheus.CounterVec
	degradedMode    prometheus.Gauge

	// HTTP metrics
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpConnections prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	// Histogram bucket configurations
	EngagementBuckets   []float64
	HTTPDurationBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		Port:                9091,
		Path:                "/metrics",
		EngagementBuckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
		HTTPDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager creates a new metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	registry := prometheus.NewRegistry()

	// Register Go runtime metrics
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		enabled:  true,
	}

	m.initPersonalityMetrics(cfg)
	m.initStorageMetrics(cfg)
	m.initHTTPMetrics(cfg)

	return m
}

func (m *Manager) initPersonalityMetrics(cfg Config) {
	m.emotionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personacore_emotion_transitions_total",
			Help: "Total emotional state transitions by resulting state.",
		},
		[]string{"state"},
	)
	m.emotionIntensity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "personacore_emotion_intensity",
			Help: "Current emotional intensity.",
		},
	)
	m.interactionsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personacore_interactions_stored_total",
			Help: "Total interactions stored, by interaction type.",
		},
		[]string{"type"},
	)

	buckets := cfg.EngagementBuckets
	if len(buckets) == 0 {
		buckets = DefaultConfig().EngagementBuckets
	}
	m.engagementScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "personacore_engagement_score",
			Help:    "Distribution of computed engagement scores.",
			Buckets: buckets,
		},
	)
	m.toneAdaptations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "personacore_tone_adaptations_total",
			Help: "Total tone adaptations driven by engagement.",
		},
	)

	m.registry.MustRegister(
		m.emotionTransitions,
		m.emotionIntensity,
		m.interactionsStored,
		m.engagementScores,
		m.toneAdaptations,
	)
}

func (m *Manager) initStorageMetrics(cfg Config) {
	m.storageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personacore_storage_failures_total",
			Help: "Total durable-store failures by operation.",
		},
		[]string{"operation"},
	)
	m.degradedMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "personacore_degraded_mode",
			Help: "1 when operating without durable persistence, else 0.",
		},
	)

	m.registry.MustRegister(m.storageFailures, m.degradedMode)
}

func (m *Manager) initHTTPMetrics(cfg Config) {
	buckets := cfg.HTTPDurationBuckets
	if len(buckets) == 0 {
		buckets = DefaultConfig().HTTPDurationBuckets
	}

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personacore_http_requests_total",
			Help: "Total HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)
	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "personacore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: buckets,
		},
		[]string{"method", "path"},
	)
	m.httpConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "personacore_http_connections_active",
			Help: "Number of in-flight HTTP requests.",
		},
	)

	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.httpConnections)
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// RecordEmotionTransition counts a transition into the given state and
// updates the intensity gauge.
func (m *Manager) RecordEmotionTransition(state string, intensity float64) {
	if !m.enabled {
		return
	}
	m.emotionTransitions.WithLabelValues(state).Inc()
	m.emotionIntensity.Set(intensity)
}

// RecordInteraction counts a stored interaction.
func (m *Manager) RecordInteraction(interactionType string) {
	if !m.enabled {
		return
	}
	m.interactionsStored.WithLabelValues(interactionType).Inc()
}

// RecordEngagementScore records a computed engagement score.
func (m *Manager) RecordEngagementScore(score float64) {
	if !m.enabled {
		return
	}
	m.engagementScores.Observe(score)
}

// RecordToneAdaptation counts a tone change.
func (m *Manager) RecordToneAdaptation() {
	if !m.enabled {
		return
	}
	m.toneAdaptations.Inc()
}

// RecordStorageFailure counts a durable-store failure for an operation.
func (m *Manager) RecordStorageFailure(operation string) {
	if !m.enabled {
		return
	}
	m.storageFailures.WithLabelValues(operation).Inc()
}

// SetDegradedMode flips the degraded-mode gauge.
func (m *Manager) SetDegradedMode(degraded bool) {
	if !m.enabled {
		return
	}
	if degraded {
		m.degradedMode.Set(1)
	} else {
		m.degradedMode.Set(0)
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Manager) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncHTTPConnections increments the in-flight request gauge.
func (m *Manager) IncHTTPConnections() {
	if !m.enabled {
		return
	}
	m.httpConnections.Inc()
}

// DecHTTPConnections decrements the in-flight request gauge.
func (m *Manager) DecHTTPConnections() {
	if !m.enabled {
		return
	}
	m.httpConnections.Dec()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server on the configured port.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return server.ListenAndServe()
}

// NoOpManager returns a no-op metrics manager for when metrics are disabled.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}
