package otel

import "go.opentelemetry.io/otel/attribute"

const (
	WgTraceName     = attribute.Key("wg.trace.name")
	WgComponentName = attribute.Key("wg.component.name")
	WgProbeEndpoint = attribute.Key("wg.probe.endpoint")
)

var (
	TraceLinkAttribute = WgComponentName.String("tracelink")
)
