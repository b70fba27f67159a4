// Package tracelink provides a link that wraps every outgoing GraphQL
// operation in a performance trace. Traces are strictly best effort: a
// failing performance SDK never changes the request or its response.
package tracelink

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/wundergraph/cosmo/tracelink/pkg/link"
	"github.com/wundergraph/cosmo/tracelink/pkg/perf"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultOperationType is used when the type of the first definition of
	// the query document is unknown.
	DefaultOperationType = "req"
)

var (
	errNoResponseContext = errors.New("operation context has no response")
	errNilTrace          = errors.New("performance returned a nil trace")
)

// Link is a link.Link that traces operations.
type Link struct {
	provider  perf.Provider
	attrKeys  []string
	attrs     map[string]string
	headerKey string
	debug     bool
	logger    *zap.Logger
	formatter Formatter
	now       func() time.Time
}

// Option configures a Link
type Option func(*Link)

// WithAttributes sets the static attributes written on every trace.
// The map is copied.
func WithAttributes(attributes map[string]string) Option {
	return func(l *Link) {
		l.attrs = make(map[string]string, len(attributes))
		for k, v := range attributes {
			l.attrs[k] = v
		}
	}
}

// WithHeaderKey sets the response header whose value is written on the trace
// as an attribute named after the header.
func WithHeaderKey(key string) Option {
	return func(l *Link) {
		l.headerKey = key
	}
}

// WithDebug enables logging of tracing failures and of every completed operation.
func WithDebug(debug bool) Option {
	return func(l *Link) {
		l.debug = debug
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Link) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithFormatter(formatter Formatter) Option {
	return func(l *Link) {
		if formatter != nil {
			l.formatter = formatter
		}
	}
}

// New creates a trace link. provider is called once per operation; when it
// yields nil the operation is forwarded without a trace.
func New(provider perf.Provider, opts ...Option) *Link {
	l := &Link{
		provider:  provider,
		logger:    zap.NewNop(),
		formatter: FormatMessage,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.attrKeys = make([]string, 0, len(l.attrs))
	for k := range l.attrs {
		l.attrKeys = append(l.attrKeys, k)
	}
	sort.Strings(l.attrKeys)

	l.logger = l.logger.With(zap.String("component", "tracelink"))

	return l
}

// traceHandle is owned by a single operation. take empties it, so a trace is
// stopped at most once.
type traceHandle struct {
	p atomic.Pointer[perf.Trace]
}

func (h *traceHandle) set(t perf.Trace) {
	h.p.Store(&t)
}

func (h *traceHandle) take() perf.Trace {
	if p := h.p.Swap(nil); p != nil {
		return *p
	}
	return nil
}

// Request implements link.Link.
func (l *Link) Request(op *link.Operation, forward link.NextLink) *link.Observable {
	if forward == nil {
		return nil
	}
	if op == nil {
		return forward(op)
	}

	operationType := operationTypeOf(op)
	startTime := l.now()

	handle := &traceHandle{}
	if operationType != string(link.OperationTypeSubscription) {
		if p := l.performance(); p != nil {
			if t := l.startTrace(op, p, SanitizeTraceName(op.OperationName)); t != nil {
				handle.set(t)
				if ct, ok := t.(perf.ContextTrace); ok {
					l.guard("Unable to propagate trace context", func() error {
						op = op.WithContext(ct.Context(op.Context()))
						return nil
					})
				}
			}
		}
	}

	result := forward(op)
	if result == nil {
		// Nothing will ever complete, release the trace right away.
		l.finish(op, handle)
		return nil
	}

	return result.Map(func(resp *link.Response, err error) (*link.Response, error) {
		l.finish(op, handle)

		if l.debug {
			l.logOperation(operationType, op, startTime, resp, err)
		}

		return resp, err
	})
}

func operationTypeOf(op *link.Operation) string {
	if op.Type() == link.OperationTypeUnknown {
		return DefaultOperationType
	}
	return string(op.Type())
}

func (l *Link) performance() perf.Performance {
	if l.provider == nil {
		return nil
	}
	var p perf.Performance
	l.guard("Unable to get performance handle", func() error {
		p = l.provider()
		return nil
	})
	return p
}

// startTrace creates and starts a trace and writes the static attributes.
// A trace that was created is returned even if starting it or writing an
// attribute failed, so that it is still stopped.
func (l *Link) startTrace(op *link.Operation, p perf.Performance, name string) perf.Trace {
	var t perf.Trace
	l.guard("Unable to start trace", func() error {
		var err error
		t, err = p.NewTrace(name)
		if err != nil {
			t = nil
			return err
		}
		if t == nil {
			return errNilTrace
		}
		if ct, ok := t.(perf.ContextTrace); ok {
			err = ct.StartContext(op.Context())
		} else {
			err = t.Start()
		}
		if err != nil {
			return err
		}
		for _, k := range l.attrKeys {
			if err := t.PutAttribute(k, l.attrs[k]); err != nil {
				return fmt.Errorf("put attribute %q: %w", k, err)
			}
		}
		return nil
	}, zap.String("trace_name", name))
	return t
}

func (l *Link) finish(op *link.Operation, handle *traceHandle) {
	t := handle.take()
	if t == nil {
		return
	}

	if l.headerKey != "" {
		l.guard("Error when getting headers by key", func() error {
			return l.putHeaderAttribute(op, t)
		}, zap.String("header_key", l.headerKey))
	}

	l.guard("Unable to stop trace", t.Stop)
}

func (l *Link) putHeaderAttribute(op *link.Operation, t perf.Trace) error {
	v, ok := op.ContextValue(link.ResponseContextKey)
	if !ok {
		return errNoResponseContext
	}
	resp, ok := v.(*http.Response)
	if !ok || resp == nil {
		return fmt.Errorf("unexpected response context of type %T", v)
	}

	value := resp.Header.Get(l.headerKey)
	if value == "" {
		if l.debug {
			l.logger.Warn("Header key does not exist", zap.String("header_key", l.headerKey))
		}
		return nil
	}

	if l.debug {
		l.logger.Info("Header attribute", zap.String("header_key", l.headerKey), zap.String("value", value))
	}
	return t.PutAttribute(l.headerKey, value)
}

func (l *Link) logOperation(operationType string, op *link.Operation, startTime time.Time, resp *link.Response, err error) {
	elapsed := l.now().Sub(startTime)

	title, fields := l.formatter(operationType, op, elapsed)

	fields = append(fields,
		zap.Object("request", op),
		zap.Object("attributes", stringMap(l.attrs)),
	)
	if resp != nil {
		fields = append(fields, zap.Object("response", resp))
	}
	if err != nil {
		fields = append(fields, zap.NamedError("response_error", err))
	}

	l.logger.Info(title, fields...)
}

type stringMap map[string]string

func (m stringMap) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for k, v := range m {
		enc.AddString(k, v)
	}
	return nil
}
