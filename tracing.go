package compositor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation name of compositor spans.
const tracerName = "github.com/gogpu/compositor"

// defaultTracer returns the tracer of the global provider, which is a
// no-op until the application installs one.
func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startSpan opens a span for one host operation.
func (h *Host) startSpan(name string, attrs ...attribute.KeyValue) trace.Span {
	_, span := h.tracer.Start(context.Background(), name, trace.WithAttributes(attrs...))
	return span
}
