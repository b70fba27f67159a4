// Package perf defines the performance monitoring contract used by the trace
// link: a provider of named traces with explicit start and stop boundaries.
package perf

import "context"

// Trace is a named timing and attribute record.
type Trace interface {
	Start() error
	Stop() error
	PutAttribute(key, value string) error
}

// Performance creates named traces.
type Performance interface {
	NewTrace(name string) (Trace, error)
}

// Provider returns the Performance handle to use for one operation.
// It may return nil when performance monitoring is unavailable.
type Provider func() Performance

// Static returns a Provider that always yields p.
func Static(p Performance) Provider {
	return func() Performance {
		return p
	}
}

// ContextTrace is implemented by traces that take part in context
// propagation.
type ContextTrace interface {
	Trace
	// StartContext is Start with the trace nested under the span found in
	// parent, if any.
	StartContext(parent context.Context) error
	// Context returns parent enriched with the trace. It is only meaningful
	// after Start.
	Context(parent context.Context) context.Context
}
