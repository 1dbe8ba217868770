package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "campify"

// Metrics is a prometheus.Collector for backend traffic and user-facing
// notifications produced by the providers.
type Metrics struct {
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
}

// NewMetrics returns a new Metrics collector. Register it with a
// prometheus.Registerer before serving /metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		backendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "backend_requests_total",
				Help:      "The number of REST backend requests by method and status code.",
			}, []string{"method", "code"},
		),
		backendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "backend_request_duration_seconds",
				Help:      "The time taken by REST backend requests.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			}, []string{"method"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "notifications_total",
				Help:      "The number of notifications shown, by kind.",
			}, []string{"kind"},
		),
	}
}

// ObserveBackendRequest records one backend round trip. A code of 0 means
// the request never got a response.
func (m *Metrics) ObserveBackendRequest(method string, code int, elapsed time.Duration) {
	m.backendRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.backendLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveNotification records a shown notification.
func (m *Metrics) ObserveNotification(kind string) {
	m.notifications.WithLabelValues(kind).Inc()
}

// Describe is part of the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.backendRequests.Describe(ch)
	m.backendLatency.Describe(ch)
	m.notifications.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.backendRequests.Collect(ch)
	m.backendLatency.Collect(ch)
	m.notifications.Collect(ch)
}
