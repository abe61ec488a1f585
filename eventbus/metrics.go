package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes bus activity to Prometheus. A nil *Metrics records nothing.
type Metrics struct {
	publishes     *prometheus.CounterVec
	handlerPanics *prometheus.CounterVec
	subscriptions prometheus.Gauge
}

// NewMetrics registers the bus collectors on registry, or on the default
// registerer when registry is nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		publishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventbus_publishes_total",
				Help: "Events published, by event type and whether anyone was listening",
			},
			[]string{"event_type", "delivered"},
		),
		handlerPanics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventbus_handler_panics_total",
				Help: "Handler panics recovered during dispatch",
			},
			[]string{"event_type"},
		),
		subscriptions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventbus_subscriptions",
				Help: "Current number of subscriptions across all event types",
			},
		),
	}
}

func (m *Metrics) published(eventType string, delivered bool) {
	if m == nil {
		return
	}
	label := "false"
	if delivered {
		label = "true"
	}
	m.publishes.WithLabelValues(eventType, label).Inc()
}

func (m *Metrics) handlerPanicked(eventType string) {
	if m == nil {
		return
	}
	m.handlerPanics.WithLabelValues(eventType).Inc()
}

func (m *Metrics) subscribed() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

func (m *Metrics) unsubscribed(n int) {
	if m == nil {
		return
	}
	m.subscriptions.Sub(float64(n))
}
