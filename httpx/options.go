package httpx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/seb7887/uibus/httpx/policy"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

func WithRetry(cfg policy.RetryConfig) Option {
	return func(c *Client) {
		c.retry = &cfg
	}
}

func WithTimeout(cfg policy.TimeoutConfig) Option {
	return func(c *Client) {
		c.timeout = &cfg
	}
}

// WithMetrics registers the client collectors on registry.
func WithMetrics(registry prometheus.Registerer) Option {
	return func(c *Client) {
		c.metricsRegistry = registry
	}
}

// WithTracing opens a client span per request. A nil provider means the
// global one.
func WithTracing(provider trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracing = true
		c.tracerProvider = provider
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger.Named("httpx")
	}
}

// WithScheduler runs the callbacks of Client.Go on s instead of the request
// goroutine.
func WithScheduler(s Scheduler) Option {
	return func(c *Client) {
		c.scheduler = s
	}
}

// WithRequestIDs sets an X-Request-ID header on requests that carry none.
func WithRequestIDs() Option {
	return func(c *Client) {
		c.requestIDs = true
	}
}

// WithPolicy appends a custom policy inside the built-in ones, closest to
// the transport.
func WithPolicy(p policy.Policy) Option {
	return func(c *Client) {
		c.extra = append(c.extra, p)
	}
}
