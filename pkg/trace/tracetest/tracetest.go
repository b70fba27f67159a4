package tracetest

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// NewInMemoryExporter returns a new InMemoryExporter that is reset when the
// test finishes.
func NewInMemoryExporter(t *testing.T) *tracetest.InMemoryExporter {
	me := tracetest.NewInMemoryExporter()
	t.Cleanup(func() {
		me.Reset()
	})
	return me
}

// NewTracerProvider returns a tracer provider that exports synchronously to
// exporter and is shut down when the test finishes.
func NewTracerProvider(t *testing.T, exporter sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append(opts, sdktrace.WithSyncer(exporter))
	tp := sdktrace.NewTracerProvider(opts...)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return tp
}
