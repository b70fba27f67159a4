package otelconfig

type Exporter string

const (
	ExporterOLTPHTTP Exporter = "http"
	ExporterOLTPGRPC Exporter = "grpc"
	// ExporterStdout writes spans to stdout, meant for local debugging.
	ExporterStdout Exporter = "stdout"

	DefaultEndpoint    = "http://localhost:4318"
	DefaultMetricsPath = "/v1/metrics"
	DefaultTracesPath  = "/v1/traces"
)

type ExporterTemporality string

const (
	CumulativeTemporality ExporterTemporality = "cumulative"
	DeltaTemporality      ExporterTemporality = "delta"
)
