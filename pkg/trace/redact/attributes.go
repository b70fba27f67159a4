// Package redact replaces the values of sensitive span attributes, such as
// header values copied onto traces, before spans reach an exporter.
package redact

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// RedactFunc returns the replacement value of a matching attribute.
type RedactFunc func(kv attribute.KeyValue) string

// Attributes registers a span processor that redacts the attributes of ended
// spans whose key is one of keys.
func Attributes(keys []attribute.Key, fn RedactFunc) sdktrace.TracerProviderOption {
	return sdktrace.WithSpanProcessor(NewProcessor(keys, fn))
}

// Processor is a span processor that rewrites attribute values in OnEnd.
// It must be registered before any exporting processor.
type Processor struct {
	keys map[attribute.Key]struct{}
	fn   RedactFunc
}

func NewProcessor(keys []attribute.Key, fn RedactFunc) *Processor {
	m := make(map[attribute.Key]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return &Processor{keys: m, fn: fn}
}

func (p *Processor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd cannot replace the attribute slice of the read-only snapshot, it
// rewrites the values in the backing array shared with later processors.
func (p *Processor) OnEnd(s sdktrace.ReadOnlySpan) {
	if len(p.keys) == 0 {
		return
	}
	attrs := s.Attributes()
	for i := range attrs {
		if _, ok := p.keys[attrs[i].Key]; ok {
			attrs[i].Value = attribute.StringValue(p.fn(attrs[i]))
		}
	}
}

func (p *Processor) Shutdown(context.Context) error { return nil }

func (p *Processor) ForceFlush(context.Context) error { return nil }
