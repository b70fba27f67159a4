package metric

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	rotel "github.com/wundergraph/cosmo/tracelink/pkg/otel"
	"github.com/wundergraph/cosmo/tracelink/pkg/otel/otelconfig"

	_ "google.golang.org/grpc/encoding/gzip" // Required for gzip support over grpc
)

// Operation durations in milliseconds, 0ms-10s.
// Please version the metric name if you change the buckets.
var msBucketBounds = []float64{
	0, 5, 10, 25, 50, 75, 100, 150, 200, 250, 300, 400, 500,
	750, 1000, 1500, 2000, 2500, 3000, 4000, 5000, 10000,
}

const (
	OperationDurationMetric = "graphql.client.operation.duration"

	defaultExportTimeout  = 30 * time.Second
	defaultExportInterval = 15 * time.Second
)

func deltaTemporalitySelector(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	switch kind {
	case sdkmetric.InstrumentKindCounter,
		sdkmetric.InstrumentKindObservableCounter,
		sdkmetric.InstrumentKindHistogram:
		return metricdata.DeltaTemporality
	default:
		return metricdata.CumulativeTemporality
	}
}

func getTemporalitySelector(temporality otelconfig.ExporterTemporality) sdkmetric.TemporalitySelector {
	if temporality == otelconfig.DeltaTemporality {
		return deltaTemporalitySelector
	}
	return sdkmetric.DefaultTemporalitySelector
}

func newOTLPHTTPExporter(ctx context.Context, endpoint otelconfig.Endpoint, exp *OpenTelemetryExporter) (sdkmetric.Exporter, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(endpoint.HostPort),
		otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression),
		otlpmetrichttp.WithTemporalitySelector(getTemporalitySelector(exp.Temporality)),
	}
	if endpoint.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(exp.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(exp.Headers))
	}
	if exp.HTTPPath != "" {
		opts = append(opts, otlpmetrichttp.WithURLPath(exp.HTTPPath))
	}
	return otlpmetrichttp.New(ctx, opts...)
}

func newOTLPGRPCExporter(ctx context.Context, endpoint otelconfig.Endpoint, exp *OpenTelemetryExporter) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(endpoint.HostPort),
		otlpmetricgrpc.WithCompressor("gzip"),
		otlpmetricgrpc.WithTemporalitySelector(getTemporalitySelector(exp.Temporality)),
	}
	if endpoint.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	if len(exp.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(exp.Headers))
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func createOTELExporter(ctx context.Context, log *zap.Logger, exp *OpenTelemetryExporter) (sdkmetric.Exporter, error) {
	endpoint, err := otelconfig.ParseEndpoint(exp.Endpoint)
	if err != nil {
		return nil, err
	}

	var exporter sdkmetric.Exporter
	switch exp.Exporter {
	case otelconfig.ExporterOLTPHTTP, "":
		exporter, err = newOTLPHTTPExporter(ctx, endpoint, exp)
	case otelconfig.ExporterOLTPGRPC:
		exporter, err = newOTLPGRPCExporter(ctx, endpoint, exp)
	default:
		return nil, fmt.Errorf("unknown metrics exporter %s", exp.Exporter)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Metrics enabled",
		zap.String("exporter", string(exp.Exporter)),
		zap.String("endpoint", exp.Endpoint),
		zap.String("path", exp.HTTPPath),
	)
	return exporter, nil
}

// newPrometheusReader registers an OpenTelemetry bridge on a fresh registry
// that also carries the Go runtime and process collectors.
func newPrometheusReader(c *PrometheusConfig) (sdkmetric.Reader, *prometheus.Registry, error) {
	registry := c.TestRegistry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		// Only available on Linux and Windows systems
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	reader, err := otelprom.New(
		otelprom.WithoutUnits(),
		otelprom.WithRegisterer(registry),
	)
	if err != nil {
		return nil, nil, err
	}
	return reader, registry, nil
}

func operationDurationView() sdkmetric.View {
	return sdkmetric.NewView(
		sdkmetric.Instrument{Name: OperationDurationMetric},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: msBucketBounds,
			},
		},
	)
}

// NewMeterProvider creates a meter provider with a Prometheus reader and one
// periodic reader per OTLP exporter, and installs it as the global provider.
// The returned registry is nil when Prometheus is disabled.
func NewMeterProvider(ctx context.Context, log *zap.Logger, c *Config, serviceInstanceID string) (*sdkmetric.MeterProvider, *prometheus.Registry, error) {
	r, err := rotel.NewResource(ctx, c.Name, c.Version, serviceInstanceID)
	if err != nil {
		return nil, nil, err
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(r),
		sdkmetric.WithView(operationDurationView()),
	}

	var registry *prometheus.Registry
	if c.Prometheus.Enabled {
		var reader sdkmetric.Reader
		reader, registry, err = newPrometheusReader(&c.Prometheus)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	switch {
	case c.OpenTelemetry.TestReader != nil:
		opts = append(opts, sdkmetric.WithReader(c.OpenTelemetry.TestReader))
	case c.OpenTelemetry.Enabled:
		for _, exp := range c.OpenTelemetry.Exporters {
			if exp.Disabled {
				continue
			}

			exporter, err := createOTELExporter(ctx, log, exp)
			if err != nil {
				log.Error("creating OTEL metrics exporter", zap.Error(err))
				return nil, nil, err
			}

			opts = append(opts, sdkmetric.WithReader(
				sdkmetric.NewPeriodicReader(exporter,
					sdkmetric.WithTimeout(defaultExportTimeout),
					sdkmetric.WithInterval(defaultExportInterval),
				),
			))
		}
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	return mp, registry, nil
}
