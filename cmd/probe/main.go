package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/wundergraph/cosmo/tracelink/internal/probe"
	"github.com/wundergraph/cosmo/tracelink/pkg/config"
	"github.com/wundergraph/cosmo/tracelink/pkg/link"
	"github.com/wundergraph/cosmo/tracelink/pkg/logging"
	"github.com/wundergraph/cosmo/tracelink/pkg/metric"
	rotel "github.com/wundergraph/cosmo/tracelink/pkg/otel"
	"github.com/wundergraph/cosmo/tracelink/pkg/perf"
	"github.com/wundergraph/cosmo/tracelink/pkg/trace"
	"github.com/wundergraph/cosmo/tracelink/pkg/tracelink"
)

// Version is set at build time
var Version = "dev"

var (
	configPath  = flag.String("config", "", "path to the config file, defaults to config.yaml")
	overrideEnv = flag.String("override-env", "", "env file name to override env variables")
)

func main() {
	flag.Parse()

	result, err := config.LoadConfig(*configPath, *overrideEnv)
	if err != nil {
		log.Fatal("Could not load config: ", err)
	}
	cfg := &result.Config

	logLevel, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal("Could not parse log level: ", err)
	}

	logger := logging.New(logging.Options{
		Pretty:         !cfg.JSONLog,
		Debug:          logLevel == zapcore.DebugLevel,
		Level:          logLevel,
		ServiceVersion: Version,
	}).With(zap.String("component", "@wundergraph/tracelink-probe"))

	if !result.DefaultLoaded {
		logger.Info("Default config file not found, using environment only", zap.String("path", config.DefaultConfigPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGHUP,  // process is detached from terminal
		syscall.SIGTERM, // default for kill
		syscall.SIGQUIT, // ctrl + \
	)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Fatal("Probe exited with error", zap.Error(err))
	}

	logger.Info("Probe stopped")
}

func run(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	setRuntimeLimits(logger)

	instanceID := uuid.NewString()

	tp, err := trace.NewTracerProvider(ctx, &trace.ProviderConfig{
		Logger:            logger,
		Config:            traceConfig(cfg),
		ServiceInstanceID: instanceID,
	})
	if err != nil {
		return fmt.Errorf("could not create tracer provider: %w", err)
	}

	mp, registry, err := metric.NewMeterProvider(ctx, logger, metricsConfig(cfg), instanceID)
	if err != nil {
		return fmt.Errorf("could not create meter provider: %w", err)
	}

	var promServer *http.Server
	if registry != nil {
		promServer, err = metric.NewPrometheusServer(logger, cfg.Telemetry.Metrics.Prometheus.ListenAddr, cfg.Telemetry.Metrics.Prometheus.Path, registry)
		if err != nil {
			return fmt.Errorf("could not create prometheus server: %w", err)
		}
	}

	chain, err := newLink(logger, cfg, tp, mp)
	if err != nil {
		return err
	}

	runner, err := probe.New(probe.Options{
		Endpoint:   cfg.Probe.Endpoint,
		Headers:    cfg.Probe.Headers,
		Operations: probeOperations(cfg.Probe.Operations),
		Interval:   cfg.Probe.Interval,
		MaxJitter:  cfg.Probe.MaxJitter,
		Timeout:    cfg.Probe.Timeout,
		Link:       chain,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create probe: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	if promServer != nil {
		g.Go(func() error {
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("prometheus server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return runner.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()

		logger.Info("Graceful shutdown ...", zap.String("shutdown_delay", cfg.ShutdownDelay.String()))

		// enforce a maximum shutdown delay
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDelay)
		defer cancel()

		var result *multierror.Error
		if promServer != nil {
			if err := promServer.Shutdown(shutdownCtx); err != nil {
				result = multierror.Append(result, fmt.Errorf("prometheus server: %w", err))
			}
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, fmt.Errorf("tracer provider: %w", err))
		}
		if err := mp.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, fmt.Errorf("meter provider: %w", err))
		}
		return result.ErrorOrNil()
	})

	return g.Wait()
}

func newLink(logger *zap.Logger, cfg *config.Config, tp oteltrace.TracerProvider, mp otelmetric.MeterProvider) (link.Link, error) {
	if !cfg.TraceLink.Enabled {
		return link.LinkFunc(func(op *link.Operation, forward link.NextLink) *link.Observable {
			return forward(op)
		}), nil
	}

	p, err := perf.NewOtel(perf.OtelOptions{
		TracerProvider: tp,
		MeterProvider:  mp,
		Attributes:     []attribute.KeyValue{rotel.WgProbeEndpoint.String(cfg.Probe.Endpoint)},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create performance monitoring: %w", err)
	}

	return tracelink.New(perf.Static(p),
		tracelink.WithAttributes(cfg.TraceLink.AttributeMap()),
		tracelink.WithHeaderKey(cfg.TraceLink.HeaderKey),
		tracelink.WithDebug(cfg.TraceLink.Debug),
		tracelink.WithLogger(logger),
	), nil
}

func setRuntimeLimits(logger *zap.Logger) {
	// Automatically set GOMAXPROCS to avoid CPU throttling on containerized environments
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf)); err != nil {
		logger.Warn("Could not set GOMAXPROCS", zap.Error(err))
	}

	mLimit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroupHybrid,
				memlimit.FromSystem,
			),
		),
	)
	if err != nil {
		logger.Debug("Could not set memory limit", zap.Error(err))
		return
	}
	if mLimit > 0 {
		logger.Info("GOMEMLIMIT set automatically", zap.String("limit", humanize.Bytes(uint64(mLimit))))
	} else if os.Getenv("GOMEMLIMIT") != "" {
		logger.Info("GOMEMLIMIT set by user", zap.String("limit", os.Getenv("GOMEMLIMIT")))
	}
}
