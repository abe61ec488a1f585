package policy

import (
	"context"
	"errors"
	"net/http"

	"github.com/seb7887/uibus/httpx/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// KeyAttribute holds the request key on client spans.
const KeyAttribute = "uibus.request.key"

// InstrumentationPolicy opens one client span per request, retries included,
// and propagates the trace context through the request headers.
type InstrumentationPolicy struct {
	otel *observability.OTELInstrumenter
}

func NewInstrumentationPolicy(provider trace.TracerProvider) *InstrumentationPolicy {
	return &InstrumentationPolicy{otel: observability.NewOTELInstrumenter(provider)}
}

func (p *InstrumentationPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	ctx, span := p.otel.StartSpan(ctx, req)
	if key := keyFrom(ctx); key != "" {
		span.SetAttributes(attribute.String(KeyAttribute, key))
	}

	resp, err := next(ctx, req)
	if errors.Is(err, context.Canceled) {
		span.AddEvent("aborted")
	}
	p.otel.EndSpan(span, resp, err)
	return resp, err
}
