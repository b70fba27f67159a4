package probe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/buger/jsonparser"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/wundergraph/cosmo/tracelink/pkg/perf"
	"github.com/wundergraph/cosmo/tracelink/pkg/trace/tracetest"
	"github.com/wundergraph/cosmo/tracelink/pkg/tracelink"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)
}

type graphQLServer struct {
	mu             sync.Mutex
	operationNames []string
	authorization  []string
}

func (s *graphQLServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	name, _ := jsonparser.GetString(body, "operationName")

	s.mu.Lock()
	s.operationNames = append(s.operationNames, name)
	s.authorization = append(s.authorization, r.Header.Get("Authorization"))
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", "req-"+name)

	if name == "Broken" {
		_, _ = w.Write([]byte(`{"errors":[{"message":"field not found"}]}`))
		return
	}
	_, _ = w.Write([]byte(`{"data":{"health":true}}`))
}

func (s *graphQLServer) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.operationNames...)
}

func TestRunner(t *testing.T) {
	t.Run("traces every operation of a round", func(t *testing.T) {
		gql := &graphQLServer{}
		server := httptest.NewServer(gql)
		defer server.Close()

		exporter := tracetest.NewInMemoryExporter(t)
		tp := tracetest.NewTracerProvider(t, exporter)
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))

		p, err := perf.NewOtel(perf.OtelOptions{TracerProvider: tp, MeterProvider: mp})
		require.NoError(t, err)

		runner, err := New(Options{
			Endpoint: server.URL,
			Headers:  map[string]string{"Authorization": "Bearer probe"},
			Operations: []Operation{
				{Name: "GetHealth", Query: "query GetHealth { health }"},
				{Name: "_Status_", Query: "query _Status_ { health }"},
			},
			Interval: time.Minute,
			Timeout:  5 * time.Second,
			Link: tracelink.New(perf.Static(p),
				tracelink.WithAttributes(map[string]string{"tier": "gold"}),
				tracelink.WithHeaderKey("x-request-id"),
			),
			Logger: zap.NewNop(),
		})
		require.NoError(t, err)

		require.NoError(t, runner.RunOnce(context.Background()))
		require.ElementsMatch(t, []string{"GetHealth", "_Status_"}, gql.calls())

		gql.mu.Lock()
		require.Equal(t, []string{"Bearer probe", "Bearer probe"}, gql.authorization)
		gql.mu.Unlock()

		names := make(map[string][]attribute.KeyValue)
		for _, s := range exporter.GetSpans() {
			names[s.Name] = s.Attributes
		}
		require.Contains(t, names, "GetHealth")
		require.Contains(t, names, "Status")
		require.Contains(t, names["GetHealth"], attribute.String("tier", "gold"))
		require.Contains(t, names["GetHealth"], attribute.String("x-request-id", "req-GetHealth"))
		require.Contains(t, names["Status"], attribute.String("x-request-id", "req-_Status_"))
	})

	t.Run("aggregates failed operations", func(t *testing.T) {
		gql := &graphQLServer{}
		server := httptest.NewServer(gql)
		defer server.Close()

		runner, err := New(Options{
			Endpoint: server.URL,
			Operations: []Operation{
				{Name: "GetHealth", Query: "query GetHealth { health }"},
				{Name: "Broken", Query: "query Broken { missing }"},
			},
			Interval: time.Minute,
			Link:     tracelink.New(nil),
		})
		require.NoError(t, err)

		err = runner.RunOnce(context.Background())
		require.ErrorContains(t, err, `operation "Broken"`)
		require.NotContains(t, err.Error(), `operation "GetHealth"`)
		require.Len(t, gql.calls(), 2)
	})

	t.Run("runs until the context is done", func(t *testing.T) {
		gql := &graphQLServer{}
		server := httptest.NewServer(gql)
		defer server.Close()

		runner, err := New(Options{
			Endpoint:   server.URL,
			Operations: []Operation{{Name: "GetHealth", Query: "query GetHealth { health }"}},
			Interval:   10 * time.Millisecond,
			Link:       tracelink.New(nil),
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- runner.Run(ctx)
		}()

		require.Eventually(t, func() bool {
			return len(gql.calls()) >= 3
		}, 5*time.Second, 5*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("runner did not stop")
		}

		server.CloseClientConnections()
	})

	t.Run("validates options", func(t *testing.T) {
		_, err := New(Options{Operations: []Operation{{Query: "{ a }"}}, Interval: time.Second, Link: tracelink.New(nil)})
		require.ErrorContains(t, err, "endpoint")

		_, err = New(Options{Endpoint: "http://localhost", Interval: time.Second, Link: tracelink.New(nil)})
		require.ErrorContains(t, err, "operation")

		_, err = New(Options{Endpoint: "http://localhost", Operations: []Operation{{Query: "{ a }"}}, Interval: time.Second})
		require.ErrorContains(t, err, "link")

		_, err = New(Options{Endpoint: "http://localhost", Operations: []Operation{{Query: "{ a }"}}, Link: tracelink.New(nil)})
		require.ErrorContains(t, err, "interval")
	})
}
