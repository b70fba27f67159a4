package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/wundergraph/cosmo/tracelink/pkg/otel/otelconfig"
)

const (
	DefaultServiceName    = "cosmo-tracelink"
	DefaultPrometheusAddr = "127.0.0.1:8088"
	DefaultPrometheusPath = "/metrics"
)

// PrometheusConfig controls the pull endpoint serving the client metrics.
type PrometheusConfig struct {
	Enabled    bool
	ListenAddr string
	Path       string
	// TestRegistry replaces the registry created by NewMeterProvider.
	TestRegistry *prometheus.Registry
}

// OpenTelemetryExporter is a single OTLP push target.
type OpenTelemetryExporter struct {
	Disabled bool
	Exporter otelconfig.Exporter
	// Endpoint is a URL, its scheme decides whether TLS is used.
	Endpoint string
	Headers  map[string]string
	// HTTPPath is ignored by the grpc exporter.
	HTTPPath    string
	Temporality otelconfig.ExporterTemporality
}

type OpenTelemetry struct {
	Enabled   bool
	Exporters []*OpenTelemetryExporter
	// TestReader is registered instead of any configured exporter.
	TestReader sdkmetric.Reader
}

type Config struct {
	Name    string
	Version string

	OpenTelemetry OpenTelemetry
	Prometheus    PrometheusConfig
}

// DefaultConfig has Prometheus and OTLP disabled.
func DefaultConfig(serviceVersion string) *Config {
	return &Config{
		Name:    DefaultServiceName,
		Version: serviceVersion,
		Prometheus: PrometheusConfig{
			ListenAddr: DefaultPrometheusAddr,
			Path:       DefaultPrometheusPath,
		},
	}
}
