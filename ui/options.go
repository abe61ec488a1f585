package ui

import (
	"github.com/seb7887/uibus/inflight"
	"go.uber.org/zap"
)

type options struct {
	logger  *zap.Logger
	metrics *inflight.Metrics
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRegistryMetrics records the requests of the component's registry.
func WithRegistryMetrics(m *inflight.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) registryOptions() []inflight.Option {
	return []inflight.Option{inflight.WithLogger(o.logger), inflight.WithMetrics(o.metrics)}
}
