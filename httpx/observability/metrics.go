// Package observability holds the Prometheus and OpenTelemetry plumbing used
// by the httpx policies.
package observability

import (
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsCollector struct {
	requestDuration *prometheus.HistogramVec
	retryAttempts   *prometheus.CounterVec
	activeRequests  *prometheus.GaugeVec
}

// NewMetricsCollector registers the client collectors on registry, or on the
// default registerer when registry is nil.
func NewMetricsCollector(registry prometheus.Registerer) *MetricsCollector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &MetricsCollector{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_client_request_duration_seconds",
				Help:    "HTTP client request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "status_code", "host"},
		),
		retryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_client_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "host", "reason"},
		),
		activeRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "http_client_active_requests",
				Help: "Number of active HTTP requests",
			},
			[]string{"host"},
		),
	}
}

// RecordRequestDuration observes one request. statusCode is 0 when no
// response was received.
func (m *MetricsCollector) RecordRequestDuration(method, host string, statusCode int, duration time.Duration) {
	m.requestDuration.WithLabelValues(method, strconv.Itoa(statusCode), host).Observe(duration.Seconds())
}

func (m *MetricsCollector) IncrementRetryAttempts(method, host, reason string) {
	m.retryAttempts.WithLabelValues(method, host, reason).Inc()
}

func (m *MetricsCollector) IncrementActiveRequests(host string) {
	m.activeRequests.WithLabelValues(host).Inc()
}

func (m *MetricsCollector) DecrementActiveRequests(host string) {
	m.activeRequests.WithLabelValues(host).Dec()
}

// NormalizeHost strips default ports to keep label cardinality down.
func NormalizeHost(host string) string {
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if port == "80" || port == "443" {
		return h
	}
	return host
}

// RetryReason labels why an attempt is retried.
func RetryReason(statusCode int, err error) string {
	switch {
	case err != nil:
		return "network_error"
	case statusCode == 429:
		return "429"
	case statusCode >= 500:
		return "5xx"
	default:
		return "custom"
	}
}
