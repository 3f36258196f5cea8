// Package metrics provides Prometheus metrics for enrollment and verification.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeEnrolled      = "enrolled"
	OutcomeAdmitted      = "admitted"
	OutcomeDenied        = "denied"
	OutcomeNoFace        = "no_face"
	OutcomeCaptureFailed = "capture_failed"
	OutcomeDuplicate     = "duplicate"
	OutcomeInvalid       = "invalid"
	OutcomeError         = "error"
)

// scoreBuckets cover the full cosine distance range with detail around the
// usual admit threshold.
var scoreBuckets = []float64{0.05, 0.1, 0.2, 0.3, 0.35, 0.4, 0.5, 0.75, 1, 1.5, 2}

// Manager owns a registry and the metrics registered on it. All methods are
// safe on a nil *Manager, which records nothing.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	enrollments      *prometheus.CounterVec
	verifications    *prometheus.CounterVec
	deletions        prometheus.Counter
	matchScore       prometheus.Histogram
	extractLatency   prometheus.Histogram
	identities       prometheus.Gauge
	captureFrames    prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpRequestTimes *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry uses an existing registry instead of a fresh one.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// NewManager creates a manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "facegate",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.enrollments = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "enrollments_total",
		Help:      "Enrollment attempts by outcome",
	}, []string{"outcome"})

	m.verifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "verifications_total",
		Help:      "Verification attempts by outcome",
	}, []string{"outcome"})

	m.deletions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "deletions_total",
		Help:      "Identities removed",
	})

	m.matchScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "match_score",
		Help:      "Best cosine distance found during verification",
		Buckets:   scoreBuckets,
	})

	m.extractLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "extraction_duration_seconds",
		Help:      "Time spent computing a face descriptor",
		Buckets:   prometheus.DefBuckets,
	})

	m.identities = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "identities",
		Help:      "Number of enrolled identities seen by the last snapshot",
	})

	m.captureFrames = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "capture_frames",
		Help:      "Frames processed per capture session",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	m.httpRequestTimes = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordEnrollment counts an enrollment attempt.
func (m *Manager) RecordEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
}

// RecordVerification counts a verification attempt.
func (m *Manager) RecordVerification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

// RecordDeletion counts a removed identity.
func (m *Manager) RecordDeletion() {
	if m == nil {
		return
	}
	m.deletions.Inc()
}

// ObserveMatchScore records the best distance of a verification.
func (m *Manager) ObserveMatchScore(score float64) {
	if m == nil {
		return
	}
	m.matchScore.Observe(score)
}

// ObserveExtraction records how long descriptor extraction took.
func (m *Manager) ObserveExtraction(d time.Duration) {
	if m == nil {
		return
	}
	m.extractLatency.Observe(d.Seconds())
}

// SetIdentities updates the enrolled identity gauge.
func (m *Manager) SetIdentities(n int) {
	if m == nil {
		return
	}
	m.identities.Set(float64(n))
}

// ObserveCaptureFrames records how many frames a session consumed.
func (m *Manager) ObserveCaptureFrames(n int) {
	if m == nil {
		return
	}
	m.captureFrames.Observe(float64(n))
}

// RecordHTTPRequest records a finished HTTP request.
func (m *Manager) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestTimes.WithLabelValues(method, route).Observe(d.Seconds())
}
