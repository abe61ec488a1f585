package policy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/seb7887/uibus/httpx/observability"
)

// MetricsPolicy counts in-flight requests per host and observes how long
// each took. Requests cancelled by their caller are not observed.
type MetricsPolicy struct {
	collector *observability.MetricsCollector
}

func NewMetricsPolicy(collector *observability.MetricsCollector) *MetricsPolicy {
	return &MetricsPolicy{collector: collector}
}

func (p *MetricsPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	host := observability.NormalizeHost(req.URL.Host)

	p.collector.IncrementActiveRequests(host)
	start := time.Now()
	resp, err := next(ctx, req)
	elapsed := time.Since(start)
	p.collector.DecrementActiveRequests(host)

	if errors.Is(err, context.Canceled) {
		return resp, err
	}

	var status int
	if resp != nil {
		status = resp.StatusCode
	}
	p.collector.RecordRequestDuration(req.Method, host, status, elapsed)
	return resp, err
}
