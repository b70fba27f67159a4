package redact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestAttributes(t *testing.T) {
	const key = "x-user-token"
	var (
		tier     = attribute.String("tier", "gold")
		token    = attribute.String(key, "secret")
		tokenInt = attribute.Int(key, 42)
		replaced = attribute.String(key, "[REDACTED]")
	)

	rf := func(attribute.KeyValue) string {
		return "[REDACTED]"
	}

	testCases := []struct {
		name     string
		keys     []attribute.Key
		attrs    []attribute.KeyValue
		expected []attribute.KeyValue
	}{
		{name: "no keys", keys: nil, attrs: []attribute.KeyValue{tier, token}, expected: []attribute.KeyValue{tier, token}},
		{name: "matching key", keys: []attribute.Key{key}, attrs: []attribute.KeyValue{tier, token}, expected: []attribute.KeyValue{tier, replaced}},
		{name: "different value type", keys: []attribute.Key{key}, attrs: []attribute.KeyValue{tier, tokenInt}, expected: []attribute.KeyValue{tier, replaced}},
		{name: "no matching key", keys: []attribute.Key{"password"}, attrs: []attribute.KeyValue{tier, token}, expected: []attribute.KeyValue{tier, token}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			exporter := tracetest.NewInMemoryExporter()
			tp := sdktrace.NewTracerProvider(
				Attributes(tc.keys, rf),
				sdktrace.WithSyncer(exporter),
			)
			defer func() { _ = tp.Shutdown(context.Background()) }()

			_, span := tp.Tracer("test").Start(context.Background(), "GetUser")
			// Attributes written after the span started must be redacted as well.
			span.SetAttributes(tc.attrs...)
			span.End()

			spans := exporter.GetSpans()
			if assert.Len(t, spans, 1) {
				assert.ElementsMatch(t, tc.expected, spans[0].Attributes)
			}
		})
	}
}

func TestFuncFor(t *testing.T) {
	kv := attribute.String("x-user-token", "secret")

	fn, err := FuncFor(MethodHash)
	assert.NoError(t, err)
	assert.Equal(t, "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b", fn(kv))

	fn, err = FuncFor("")
	assert.NoError(t, err)
	assert.Equal(t, Redacted, fn(kv))

	_, err = FuncFor("encrypt")
	assert.EqualError(t, err, "unknown redact method: encrypt")
}
