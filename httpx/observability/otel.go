package observability

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/seb7887/uibus/httpx"

type OTELInstrumenter struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewOTELInstrumenter uses provider, or the global provider when nil.
func NewOTELInstrumenter(provider trace.TracerProvider) *OTELInstrumenter {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &OTELInstrumenter{
		tracer:     provider.Tracer(instrumentationName),
		propagator: otel.GetTextMapPropagator(),
	}
}

// StartSpan opens a client span named after the method and injects the
// trace context into the outgoing headers.
func (o *OTELInstrumenter) StartSpan(ctx context.Context, req *http.Request) (context.Context, trace.Span) {
	ctx, span := o.tracer.Start(ctx, "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("http.host", req.URL.Host),
			attribute.String("http.target", req.URL.Path),
		),
	)

	o.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))
	return ctx, span
}

// EndSpan records the outcome and ends span.
func (o *OTELInstrumenter) EndSpan(span trace.Span, resp *http.Response, err error) {
	defer span.End()

	if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case resp != nil && resp.StatusCode >= 400:
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	default:
		span.SetStatus(codes.Ok, "")
	}
}
