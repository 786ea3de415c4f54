package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Service provides OpenTelemetry tracing for carrier calls and availability
// computations.
type Service struct {
	tracer trace.Tracer
}

// NewService returns a Service backed by the global tracer provider, or by a
// no-op tracer when tracing is disabled.
func NewService(serviceName string, enabled bool) *Service {
	if !enabled {
		return &Service{tracer: noop.NewTracerProvider().Tracer(serviceName)}
	}
	return &Service{tracer: otel.Tracer(serviceName)}
}

// StartSpan starts a new span
func (s *Service) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, opts...)
}

// Trace runs fn inside a span carrying attrs and records its error, if any.
func (s *Service) Trace(ctx context.Context, name string, attrs map[string]string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	AddSpanAttributes(span, attrs)
	err := fn(ctx)
	RecordError(span, err)
	return err
}

// AddSpanAttributes adds attributes to a span
func AddSpanAttributes(span trace.Span, attrs map[string]string) {
	if len(attrs) == 0 {
		return
	}
	attributes := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		attributes = append(attributes, attribute.String(k, v))
	}
	span.SetAttributes(attributes...)
}

// RecordError records an error on a span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// ExtractTraceID returns the trace id of the span in ctx, or "".
func ExtractTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
