package metric

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/wundergraph/cosmo/tracelink/pkg/otel/otelconfig"
	"github.com/wundergraph/cosmo/tracelink/pkg/perf"
)

// The meter provider is installed globally, these tests must not run in parallel.

func recordOperation(t *testing.T, mp *sdkmetric.MeterProvider, name string) {
	t.Helper()

	p, err := perf.NewOtel(perf.OtelOptions{MeterProvider: mp})
	require.NoError(t, err)

	tr, err := p.NewTrace(name)
	require.NoError(t, err)
	require.NoError(t, tr.Start())
	require.NoError(t, tr.Stop())
}

func TestNewMeterProvider(t *testing.T) {
	t.Run("exposes operation durations to prometheus", func(t *testing.T) {
		registry := prometheus.NewRegistry()

		c := DefaultConfig("1.0.0")
		c.Prometheus.Enabled = true
		c.Prometheus.TestRegistry = registry

		mp, reg, err := NewMeterProvider(context.Background(), zap.NewNop(), c, "instance-1")
		require.NoError(t, err)
		require.Same(t, registry, reg)
		t.Cleanup(func() {
			_ = mp.Shutdown(context.Background())
		})

		recordOperation(t, mp, "GetUser")

		families, err := registry.Gather()
		require.NoError(t, err)

		var found bool
		for _, f := range families {
			if f.GetName() != "graphql_client_operation_duration" {
				continue
			}
			found = true
			require.Len(t, f.GetMetric(), 1)
			h := f.GetMetric()[0].GetHistogram()
			require.Equal(t, uint64(1), h.GetSampleCount())
		}
		require.True(t, found, "duration histogram not exported")
	})

	t.Run("uses the test reader", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()

		c := DefaultConfig("1.0.0")
		c.OpenTelemetry.TestReader = reader

		mp, reg, err := NewMeterProvider(context.Background(), zap.NewNop(), c, "instance-1")
		require.NoError(t, err)
		require.Nil(t, reg)
		t.Cleanup(func() {
			_ = mp.Shutdown(context.Background())
		})

		recordOperation(t, mp, "GetUser")

		rm := metricdata.ResourceMetrics{}
		require.NoError(t, reader.Collect(context.Background(), &rm))
		require.Len(t, rm.ScopeMetrics, 1)
		require.Equal(t, OperationDurationMetric, rm.ScopeMetrics[0].Metrics[0].Name)

		hist := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Histogram[float64])
		require.Equal(t, msBucketBounds, hist.DataPoints[0].Bounds)

		serviceName, ok := rm.Resource.Set().Value("service.name")
		require.True(t, ok)
		require.Equal(t, DefaultServiceName, serviceName.AsString())
	})

	t.Run("rejects unknown exporters", func(t *testing.T) {
		c := DefaultConfig("1.0.0")
		c.OpenTelemetry.Enabled = true
		c.OpenTelemetry.Exporters = []*OpenTelemetryExporter{
			{Exporter: otelconfig.ExporterStdout, Endpoint: "http://localhost:4318"},
		}

		_, _, err := NewMeterProvider(context.Background(), zap.NewNop(), c, "instance-1")
		require.ErrorContains(t, err, "unknown metrics exporter stdout")
	})

	t.Run("creates otlp exporters", func(t *testing.T) {
		c := DefaultConfig("1.0.0")
		c.OpenTelemetry.Enabled = true
		c.OpenTelemetry.Exporters = []*OpenTelemetryExporter{
			{Exporter: otelconfig.ExporterOLTPHTTP, Endpoint: "http://localhost:4318", HTTPPath: otelconfig.DefaultMetricsPath},
			{Exporter: otelconfig.ExporterOLTPGRPC, Endpoint: "http://localhost:4317", Temporality: otelconfig.DeltaTemporality},
			{Disabled: true, Exporter: otelconfig.ExporterStdout},
		}

		mp, _, err := NewMeterProvider(context.Background(), zap.NewNop(), c, "instance-1")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = mp.Shutdown(ctx)
	})
}

func TestTemporalitySelector(t *testing.T) {
	require.Equal(t, metricdata.DeltaTemporality, getTemporalitySelector(otelconfig.DeltaTemporality)(sdkmetric.InstrumentKindHistogram))
	require.Equal(t, metricdata.CumulativeTemporality, getTemporalitySelector(otelconfig.DeltaTemporality)(sdkmetric.InstrumentKindUpDownCounter))
	require.Equal(t, metricdata.CumulativeTemporality, getTemporalitySelector(otelconfig.CumulativeTemporality)(sdkmetric.InstrumentKindHistogram))
}

func TestPrometheusServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_rounds_total", Help: "Probe rounds"})
	registry.MustRegister(counter)
	counter.Inc()

	svr, err := NewPrometheusServer(zap.NewNop(), "127.0.0.1:0", "/metrics", registry)
	require.NoError(t, err)

	ts := httptest.NewServer(svr.Handler)
	defer ts.Close()

	res, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "probe_rounds_total 1")

	res, err = http.Get(ts.URL + HealthPath)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(ts.URL + "/unknown")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}
