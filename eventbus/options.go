package eventbus

import "go.uber.org/zap"

type Option func(*Bus)

// WithLogger sets the logger receiving the per-publish diagnostic records.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l.Named("eventbus")
		}
	}
}

// WithMetrics records bus activity on m.
func WithMetrics(m *Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithRecover makes a panicking handler be logged and skipped so the
// remaining handlers of the same dispatch still run.
func WithRecover() Option {
	return func(b *Bus) {
		b.recoverPanics = true
	}
}
