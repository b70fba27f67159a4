package tracelink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wundergraph/cosmo/tracelink/pkg/link"
	"github.com/wundergraph/cosmo/tracelink/pkg/perf"
)

func TestChainWithHTTPLink(t *testing.T) {
	t.Parallel()

	received := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received <- b
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", "req-42")
		_, _ = w.Write([]byte(`{"data":{"user":{"id":"1"}}}`))
	}))
	defer server.Close()

	spy := &spyPerformance{}
	chain := link.From(
		New(perf.Static(spy),
			WithAttributes(map[string]string{"tier": "gold"}),
			WithHeaderKey("x-request-id"),
		),
		link.NewHTTPLink(server.URL),
	)

	op := link.NewOperation(context.Background(), link.Request{
		Query:     "query GetUser($id: ID!) { user(id: $id) { id } }",
		Variables: []byte(`{"id":"1"}`),
	})

	resp, err := link.Execute(chain, op).Await()
	require.NoError(t, err)
	require.JSONEq(t, `{"user":{"id":"1"}}`, string(resp.Data))
	require.JSONEq(t, `{"query":"query GetUser($id: ID!) { user(id: $id) { id } }","operationName":"GetUser","variables":{"id":"1"}}`, string(<-received))

	traces := spy.all()
	require.Len(t, traces, 1)
	require.Equal(t, "GetUser", traces[0].name)
	require.Equal(t, []attribute.KeyValue{
		attribute.String("tier", "gold"),
		attribute.String("x-request-id", "req-42"),
	}, traces[0].attrs())

	started, stopped := traces[0].counts()
	require.Equal(t, 1, started)
	require.Equal(t, 1, stopped)
}
