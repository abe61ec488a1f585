package inflight

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is shared by every registry of a process; series are labelled with
// the owner name. A nil *Metrics records nothing.
type Metrics struct {
	begun    *prometheus.CounterVec
	settled  *prometheus.CounterVec
	aborted  *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		begun: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inflight_requests_begun_total",
			Help: "Requests begun through a registry",
		}, []string{"owner"}),
		settled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inflight_requests_settled_total",
			Help: "Requests that settled while still tracked",
		}, []string{"owner", "status"}),
		aborted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inflight_requests_aborted_total",
			Help: "Requests cancelled by Abort",
		}, []string{"owner"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inflight_requests",
			Help: "Requests currently tracked",
		}, []string{"owner"}),
	}
}

func (m *Metrics) began(owner string) {
	if m == nil {
		return
	}
	m.begun.WithLabelValues(owner).Inc()
	m.inFlight.WithLabelValues(owner).Inc()
}

// dropped undoes began for a request the issuer refused.
func (m *Metrics) dropped(owner string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(owner).Dec()
}

func (m *Metrics) settledWith(owner, status string) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(owner, status).Inc()
	m.inFlight.WithLabelValues(owner).Dec()
}

func (m *Metrics) abortedN(owner string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.aborted.WithLabelValues(owner).Add(float64(n))
	m.inFlight.WithLabelValues(owner).Sub(float64(n))
}
