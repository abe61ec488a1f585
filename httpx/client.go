// Package httpx is a resilient HTTP client. Requests run through a chain of
// policies (tracing, metrics, timeout, retry) before reaching the transport,
// either synchronously with Do or asynchronously with Go.
package httpx

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/seb7887/uibus/httpx/observability"
	"github.com/seb7887/uibus/httpx/policy"
	"github.com/seb7887/uibus/idgen"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// Client is safe for concurrent use and immutable after NewClient.
type Client struct {
	transport  Transport
	baseURL    string
	logger     *zap.Logger
	scheduler  Scheduler
	requestIDs bool

	retry           *policy.RetryConfig
	timeout         *policy.TimeoutConfig
	metricsRegistry prometheus.Registerer
	tracing         bool
	tracerProvider  trace.TracerProvider
	extra           []policy.Policy

	collector *observability.MetricsCollector
	executor  policy.Executor
}

// NewClient builds the policy chain from opts. Outermost first: tracing,
// metrics, timeout, retry, custom policies.
//
//	client := httpx.NewClient(
//	    httpx.WithBaseURL("http://localhost:8080"),
//	    httpx.WithRetry(policy.RetryConfig{MaxAttempts: 3}),
//	    httpx.WithTimeout(policy.TimeoutConfig{Request: 5 * time.Second}),
//	)
func NewClient(opts ...Option) *Client {
	c := &Client{
		transport: NewDefaultTransport(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	var policies []policy.Policy
	if c.tracing {
		policies = append(policies, policy.NewInstrumentationPolicy(c.tracerProvider))
	}
	if c.metricsRegistry != nil {
		c.collector = observability.NewMetricsCollector(c.metricsRegistry)
		policies = append(policies, policy.NewMetricsPolicy(c.collector))
	}
	if c.timeout != nil {
		policies = append(policies, policy.NewTimeoutPolicy(*c.timeout))
	}
	if c.retry != nil {
		cfg := *c.retry
		cfg.OnRetry = c.onRetry(cfg.OnRetry)
		policies = append(policies, policy.NewRetryPolicy(cfg))
	}
	policies = append(policies, c.extra...)

	c.executor = policy.Chain(policies, c.transport.Do)
	return c
}

type retriesKey struct{}

func (c *Client) onRetry(next func(*http.Request, int, *http.Response, error)) func(*http.Request, int, *http.Response, error) {
	return func(req *http.Request, attempt int, resp *http.Response, err error) {
		if n, ok := req.Context().Value(retriesKey{}).(*atomic.Int32); ok {
			n.Add(1)
		}

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		reason := observability.RetryReason(status, err)
		if c.collector != nil {
			c.collector.IncrementRetryAttempts(req.Method, observability.NormalizeHost(req.URL.Host), reason)
		}
		c.logger.Debug("retrying request",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("attempt", attempt+1),
			zap.String("reason", reason),
			zap.Error(err),
		)

		if next != nil {
			next(req, attempt, resp, err)
		}
	}
}

// prepare applies per-request options and builds the outgoing request. The
// returned counter tracks retries of this request.
func (c *Client) prepare(ctx context.Context, req *Request) (context.Context, *http.Request, *atomic.Int32, error) {
	if req != nil {
		for _, opt := range req.Options {
			ctx = opt(ctx)
		}
		if req.Key != "" {
			ctx = policy.WithKey(ctx, req.Key)
		}
	}
	retries := new(atomic.Int32)
	ctx = context.WithValue(ctx, retriesKey{}, retries)

	httpReq, err := req.toHTTPRequest(ctx, c.baseURL)
	if err != nil {
		return nil, nil, nil, &RequestError{Err: err, Cause: CauseInvalidRequest}
	}
	if c.requestIDs && httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, idgen.NewUUID())
	}
	return ctx, httpReq, retries, nil
}

// Do sends req through the policy chain. Transport failures come back as
// *RequestError; any response, whatever its status, is returned as is.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	ctx, httpReq, retries, err := c.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.executor(ctx, httpReq)
	if err != nil {
		return resp, &RequestError{
			Err:      err,
			Request:  httpReq,
			Response: resp,
			Retries:  int(retries.Load()),
			Cause:    causeOf(err),
		}
	}
	return resp, nil
}

func (c *Client) Get(ctx context.Context, path string, headers Headers) (*http.Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodGet,
		Path:    path,
		Headers: headers,
	})
}

func (c *Client) Post(ctx context.Context, path string, headers Headers, body io.Reader) (*http.Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodPost,
		Path:    path,
		Headers: headers,
		Body:    body,
	})
}
