package perf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	rotel "github.com/wundergraph/cosmo/tracelink/pkg/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/wundergraph/cosmo/tracelink"
	durationMetricName  = "graphql.client.operation.duration"
)

var (
	ErrTraceStarted    = errors.New("trace already started")
	ErrTraceNotStarted = errors.New("trace not started")
	ErrTraceStopped    = errors.New("trace already stopped")
	ErrEmptyTraceName  = errors.New("empty trace name")
	ErrEmptyAttrKey    = errors.New("empty attribute key")
)

type OtelOptions struct {
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	// MeterProvider defaults to the global provider.
	MeterProvider metric.MeterProvider
	// Attributes are added to every span and duration measurement.
	Attributes []attribute.KeyValue
}

// Otel is a Performance implementation backed by OpenTelemetry. Every trace is
// a client span and its duration is recorded in a histogram when it stops.
type Otel struct {
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	attributes []attribute.KeyValue
}

func NewOtel(opts OtelOptions) (*Otel, error) {
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	duration, err := mp.Meter(instrumentationName).Float64Histogram(
		durationMetricName,
		metric.WithUnit("ms"),
		metric.WithDescription("Duration of GraphQL client operations in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &Otel{
		tracer:     tp.Tracer(instrumentationName),
		duration:   duration,
		attributes: append([]attribute.KeyValue{rotel.TraceLinkAttribute}, opts.Attributes...),
	}, nil
}

func (o *Otel) NewTrace(name string) (Trace, error) {
	if name == "" {
		return nil, ErrEmptyTraceName
	}
	return &otelTrace{otel: o, name: name}, nil
}

type otelTrace struct {
	otel *Otel
	name string

	mu      sync.Mutex
	ctx     context.Context
	span    trace.Span
	start   time.Time
	pending []attribute.KeyValue
	stopped bool
}

func (t *otelTrace) Start() error {
	return t.StartContext(context.Background())
}

func (t *otelTrace) StartContext(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrTraceStopped
	}
	if t.span != nil {
		return ErrTraceStarted
	}

	attrs := make([]attribute.KeyValue, 0, len(t.otel.attributes)+len(t.pending)+1)
	attrs = append(attrs, t.otel.attributes...)
	attrs = append(attrs, rotel.WgTraceName.String(t.name))
	attrs = append(attrs, t.pending...)
	t.pending = nil

	t.start = time.Now()
	t.ctx, t.span = t.otel.tracer.Start(parent, t.name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(t.start),
		trace.WithAttributes(attrs...),
	)
	return nil
}

// PutAttribute may be called before Start; those attributes are added when
// the span starts.
func (t *otelTrace) PutAttribute(key, value string) error {
	if key == "" {
		return ErrEmptyAttrKey
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrTraceStopped
	}
	kv := attribute.String(key, value)
	if t.span == nil {
		t.pending = append(t.pending, kv)
		return nil
	}
	t.span.SetAttributes(kv)
	return nil
}

func (t *otelTrace) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrTraceStopped
	}
	if t.span == nil {
		return ErrTraceNotStarted
	}
	t.stopped = true

	end := time.Now()
	t.span.End(trace.WithTimestamp(end))

	elapsed := float64(end.Sub(t.start)) / float64(time.Millisecond)
	attrs := append([]attribute.KeyValue{rotel.WgTraceName.String(t.name)}, t.otel.attributes...)
	t.otel.duration.Record(t.ctx, elapsed, metric.WithAttributes(attrs...))

	return nil
}

func (t *otelTrace) Context(parent context.Context) context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.span == nil {
		return parent
	}
	return trace.ContextWithSpan(parent, t.span)
}
