package trace

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	rotel "github.com/wundergraph/cosmo/tracelink/pkg/otel"
	"github.com/wundergraph/cosmo/tracelink/pkg/otel/otelconfig"
	"github.com/wundergraph/cosmo/tracelink/pkg/trace/redact"

	_ "google.golang.org/grpc/encoding/gzip" // Required for gzip support over grpc
)

const (
	RedactMethodHash   = string(redact.MethodHash)
	RedactMethodRedact = string(redact.MethodRedact)

	maxExportBatchSize = 512
	maxQueueSize       = 2048
)

// Header values copied onto traces are short, longer values are truncated.
var spanLimits = sdktrace.SpanLimits{
	AttributeValueLengthLimit:   3 * 1024,
	AttributeCountLimit:         sdktrace.DefaultAttributeCountLimit,
	EventCountLimit:             sdktrace.DefaultEventCountLimit,
	LinkCountLimit:              sdktrace.DefaultLinkCountLimit,
	AttributePerEventCountLimit: sdktrace.DefaultAttributePerEventCountLimit,
	AttributePerLinkCountLimit:  sdktrace.DefaultAttributePerLinkCountLimit,
}

type ProviderConfig struct {
	Logger            *zap.Logger
	Config            *Config
	ServiceInstanceID string
	// MemoryExporter replaces all configured exporters. Only meant for tests.
	MemoryExporter sdktrace.SpanExporter
}

func newOTLPHTTPExporter(ctx context.Context, endpoint otelconfig.Endpoint, exp *Exporter) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint.HostPort),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if endpoint.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(exp.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(exp.Headers))
	}
	if exp.HTTPPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(exp.HTTPPath))
	}
	return otlptracehttp.New(ctx, opts...)
}

func newOTLPGRPCExporter(ctx context.Context, log *zap.Logger, endpoint otelconfig.Endpoint, exp *Exporter) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint.HostPort),
		otlptracegrpc.WithCompressor("gzip"),
	}
	if endpoint.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(exp.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(exp.Headers))
	}
	if exp.HTTPPath != "" && exp.HTTPPath != otelconfig.DefaultTracesPath {
		log.Warn("The grpc trace exporter ignores the configured path", zap.String("path", exp.HTTPPath))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createExporter(ctx context.Context, log *zap.Logger, exp *Exporter) (sdktrace.SpanExporter, error) {
	kind := exp.Exporter
	if kind == "" {
		kind = otelconfig.ExporterOLTPHTTP
	}

	if kind == otelconfig.ExporterStdout {
		log.Info("Tracer enabled", zap.String("exporter", string(kind)))
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	}

	endpoint, err := otelconfig.ParseEndpoint(exp.Endpoint)
	if err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	switch kind {
	case otelconfig.ExporterOLTPHTTP:
		exporter, err = newOTLPHTTPExporter(ctx, endpoint, exp)
	case otelconfig.ExporterOLTPGRPC:
		exporter, err = newOTLPGRPCExporter(ctx, log, endpoint, exp)
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", kind)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Tracer enabled",
		zap.String("exporter", string(kind)),
		zap.String("endpoint", exp.Endpoint),
		zap.String("path", exp.HTTPPath),
	)

	return exporter, nil
}

func redactOption(c *RedactConfig) (sdktrace.TracerProviderOption, error) {
	fn, err := redact.FuncFor(redact.Method(c.Method))
	if err != nil {
		return nil, err
	}
	keys := make([]attribute.Key, 0, len(c.Keys))
	for _, k := range c.Keys {
		keys = append(keys, attribute.Key(k))
	}
	return redact.Attributes(keys, fn), nil
}

func batcherOption(exporter sdktrace.SpanExporter, exp *Exporter) sdktrace.TracerProviderOption {
	batchTimeout := exp.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}
	exportTimeout := exp.ExportTimeout
	if exportTimeout <= 0 {
		exportTimeout = DefaultExportTimeout
	}
	return sdktrace.WithBatcher(exporter,
		sdktrace.WithBatchTimeout(batchTimeout),
		sdktrace.WithExportTimeout(exportTimeout),
		sdktrace.WithMaxExportBatchSize(maxExportBatchSize),
		sdktrace.WithMaxQueueSize(maxQueueSize),
	)
}

// NewTracerProvider creates the SDK tracer provider and installs it, together
// with the configured propagators, as the OpenTelemetry globals.
// The redact processor is registered before any exporter.
func NewTracerProvider(ctx context.Context, config *ProviderConfig) (*sdktrace.TracerProvider, error) {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := config.Config

	r, err := rotel.NewResource(ctx, c.Name, c.Version, config.ServiceInstanceID)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithRawSpanLimits(spanLimits),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.Sampler))),
		sdktrace.WithResource(r),
	}

	if c.Redact != nil && len(c.Redact.Keys) > 0 {
		opt, err := redactOption(c.Redact)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}

	if len(c.Propagators) > 0 {
		propagator, err := NewCompositePropagator(c.Propagators...)
		if err != nil {
			log.Error("creating propagators", zap.Error(err))
			return nil, err
		}
		otel.SetTextMapPropagator(propagator)
	}

	switch {
	case config.MemoryExporter != nil:
		opts = append(opts, sdktrace.WithSyncer(config.MemoryExporter))
	case c.Enabled:
		for _, exp := range c.Exporters {
			if exp.Disabled {
				continue
			}
			exporter, err := createExporter(ctx, log, exp)
			if err != nil {
				log.Error("creating exporter", zap.Error(err))
				return nil, err
			}
			opts = append(opts, batcherOption(exporter, exp))
		}
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Error("otel error", zap.Error(err))
	}))

	return tp, nil
}
