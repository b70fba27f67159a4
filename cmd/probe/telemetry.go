package main

import (
	"github.com/wundergraph/cosmo/tracelink/internal/probe"
	"github.com/wundergraph/cosmo/tracelink/pkg/config"
	"github.com/wundergraph/cosmo/tracelink/pkg/metric"
	"github.com/wundergraph/cosmo/tracelink/pkg/trace"
)

func traceConfig(cfg *config.Config) *trace.Config {
	tracing := cfg.Telemetry.Tracing

	var exporters []*trace.Exporter
	for _, exp := range tracing.Exporters {
		exporters = append(exporters, &trace.Exporter{
			Disabled:      exp.Disabled,
			Exporter:      exp.Exporter,
			Endpoint:      exp.Endpoint,
			BatchTimeout:  exp.BatchTimeout,
			ExportTimeout: exp.ExportTimeout,
			Headers:       exp.Headers,
			HTTPPath:      exp.HTTPPath,
		})
	}

	var propagators []trace.Propagator
	if tracing.Propagation.TraceContext {
		propagators = append(propagators, trace.PropagatorTraceContext)
	}
	if tracing.Propagation.B3 {
		propagators = append(propagators, trace.PropagatorB3)
	}
	if tracing.Propagation.Jaeger {
		propagators = append(propagators, trace.PropagatorJaeger)
	}
	if tracing.Propagation.Datadog {
		propagators = append(propagators, trace.PropagatorDatadog)
	}
	if tracing.Propagation.Baggage {
		propagators = append(propagators, trace.PropagatorBaggage)
	}

	c := trace.DefaultConfig(Version)
	c.Enabled = tracing.Enabled
	c.Name = cfg.Telemetry.ServiceName
	c.Sampler = tracing.SamplingRate
	c.Propagators = propagators
	if len(exporters) > 0 {
		c.Exporters = exporters
	}
	if len(tracing.Redact.Keys) > 0 {
		c.Redact = &trace.RedactConfig{
			Keys:   tracing.Redact.Keys,
			Method: tracing.Redact.Method,
		}
	}

	return c
}

func metricsConfig(cfg *config.Config) *metric.Config {
	metrics := cfg.Telemetry.Metrics

	var exporters []*metric.OpenTelemetryExporter
	for _, exp := range metrics.OTLP.Exporters {
		exporters = append(exporters, &metric.OpenTelemetryExporter{
			Disabled:    exp.Disabled,
			Exporter:    exp.Exporter,
			Endpoint:    exp.Endpoint,
			Headers:     exp.Headers,
			HTTPPath:    exp.HTTPPath,
			Temporality: exp.Temporality,
		})
	}

	c := metric.DefaultConfig(Version)
	c.Name = cfg.Telemetry.ServiceName
	c.OpenTelemetry = metric.OpenTelemetry{
		Enabled:   metrics.OTLP.Enabled,
		Exporters: exporters,
	}
	c.Prometheus = metric.PrometheusConfig{
		Enabled:    metrics.Prometheus.Enabled,
		ListenAddr: metrics.Prometheus.ListenAddr,
		Path:       metrics.Prometheus.Path,
	}

	return c
}

func probeOperations(ops []config.ProbeOperation) []probe.Operation {
	out := make([]probe.Operation, 0, len(ops))
	for _, op := range ops {
		out = append(out, probe.Operation{
			Name:      op.Name,
			Query:     op.Query,
			Variables: op.Variables,
		})
	}
	return out
}
