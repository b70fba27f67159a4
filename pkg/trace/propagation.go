package trace

import (
	"fmt"

	datadog "github.com/tonglil/opentelemetry-go-datadog-propagator"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel/propagation"
)

var propagatorFactories = map[Propagator]func() propagation.TextMapPropagator{
	PropagatorTraceContext: func() propagation.TextMapPropagator { return propagation.TraceContext{} },
	PropagatorB3: func() propagation.TextMapPropagator {
		return b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader | b3.B3SingleHeader))
	},
	PropagatorJaeger:  func() propagation.TextMapPropagator { return jaeger.Jaeger{} },
	PropagatorDatadog: func() propagation.TextMapPropagator { return datadog.Propagator{} },
	PropagatorBaggage: func() propagation.TextMapPropagator { return propagation.Baggage{} },
}

// BuildPropagators returns one propagator per distinct name, in the given order.
func BuildPropagators(propagators ...Propagator) ([]propagation.TextMapPropagator, error) {
	seen := make(map[Propagator]struct{}, len(propagators))
	out := make([]propagation.TextMapPropagator, 0, len(propagators))

	for _, p := range propagators {
		if _, ok := seen[p]; ok {
			continue
		}
		factory, ok := propagatorFactories[p]
		if !ok {
			return nil, fmt.Errorf("unknown trace propagator: %s", p)
		}
		seen[p] = struct{}{}
		out = append(out, factory())
	}

	return out, nil
}

// NewCompositePropagator injects and extracts the trace context in every given format.
func NewCompositePropagator(propagators ...Propagator) (propagation.TextMapPropagator, error) {
	all, err := BuildPropagators(propagators...)
	if err != nil {
		return nil, err
	}
	return propagation.NewCompositeTextMapPropagator(all...), nil
}
