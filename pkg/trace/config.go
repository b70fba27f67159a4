package trace

import (
	"time"

	"github.com/wundergraph/cosmo/tracelink/pkg/otel/otelconfig"
)

// ServerName Default resource name.
const ServerName = "cosmo-tracelink"

const (
	DefaultBatchTimeout  = 10 * time.Second
	DefaultExportTimeout = 30 * time.Second
)

type Propagator string

const (
	PropagatorTraceContext Propagator = "tracecontext"
	PropagatorB3           Propagator = "b3"
	PropagatorJaeger       Propagator = "jaeger"
	PropagatorBaggage      Propagator = "baggage"
	PropagatorDatadog      Propagator = "datadog"
)

type Exporter struct {
	Disabled bool
	Exporter otelconfig.Exporter
	Endpoint string

	BatchTimeout  time.Duration
	ExportTimeout time.Duration
	// Headers represents the headers for HTTP transport.
	// For example:
	//  Authorization: 'Bearer <token>'
	Headers map[string]string
	// HTTPPath represents the path for OTLP HTTP transport.
	// For example
	// /v1/traces
	HTTPPath string
}

// RedactConfig lists span attributes whose values are replaced before export.
type RedactConfig struct {
	Keys []string
	// Method is either "hash" or "redact"
	Method string
}

// Config represents the configuration for the agent.
type Config struct {
	Enabled bool
	// Name represents the service name for tracing. The default value is cosmo-tracelink.
	Name    string
	Version string
	// Sampler represents the sampler for tracing. The default value is 1.
	Sampler     float64
	Exporters   []*Exporter
	Propagators []Propagator
	Redact      *RedactConfig
}

// DefaultConfig returns the default config.
func DefaultConfig(serviceVersion string) *Config {
	return &Config{
		Enabled: false,
		Name:    ServerName,
		Version: serviceVersion,
		Sampler: 1,
		Exporters: []*Exporter{
			{
				Exporter:      otelconfig.ExporterOLTPHTTP,
				Endpoint:      otelconfig.DefaultEndpoint,
				HTTPPath:      otelconfig.DefaultTracesPath,
				BatchTimeout:  DefaultBatchTimeout,
				ExportTimeout: DefaultExportTimeout,
			},
		},
		Propagators: []Propagator{PropagatorTraceContext},
	}
}
