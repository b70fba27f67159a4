package tracelink

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wundergraph/cosmo/tracelink/pkg/perf"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestTransport(t *testing.T) {
	t.Parallel()

	const body = `{"query":"query GetUser { user { id } }","operationName":"GetUser","variables":{"id":"1"}}`

	t.Run("traces a POST request and forwards it untouched", func(t *testing.T) {
		t.Parallel()

		received := make(chan []byte, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			received <- b
			w.Header().Set("X-Request-Id", "abc")
			_, _ = w.Write([]byte(`{"data":{"user":{"id":"1"}}}`))
		}))
		defer server.Close()

		spy := &spyPerformance{}
		client := &http.Client{
			Transport: NewTransport(nil, New(perf.Static(spy), WithHeaderKey("x-request-id"))),
		}

		res, err := client.Post(server.URL, "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"data":{"user":{"id":"1"}}}`, string(data))
		require.JSONEq(t, body, string(<-received))

		traces := spy.all()
		require.Len(t, traces, 1)
		require.Equal(t, "GetUser", traces[0].name)
		require.Equal(t, []attribute.KeyValue{attribute.String("x-request-id", "abc")}, traces[0].attrs())

		_, stopped := traces[0].counts()
		require.Equal(t, 1, stopped)
	})

	t.Run("reads GET requests from the query string", func(t *testing.T) {
		t.Parallel()

		spy := &spyPerformance{}
		base := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: http.Header{}, Request: r}, nil
		})

		q := url.Values{}
		q.Set("query", "query ListUsers { users { id } }")
		req, err := http.NewRequest(http.MethodGet, "http://localhost/graphql?"+q.Encode(), nil)
		require.NoError(t, err)

		res, err := NewTransport(base, New(perf.Static(spy))).RoundTrip(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)

		traces := spy.all()
		require.Len(t, traces, 1)
		require.Equal(t, "ListUsers", traces[0].name)
	})

	t.Run("does not trace subscriptions", func(t *testing.T) {
		t.Parallel()

		spy := &spyPerformance{}
		base := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: http.Header{}, Request: r}, nil
		})

		req, err := http.NewRequest(http.MethodPost, "http://localhost/graphql",
			bytes.NewBufferString(`{"query":"subscription OnUser { onUser { id } }"}`))
		require.NoError(t, err)

		_, err = NewTransport(base, New(perf.Static(spy))).RoundTrip(req)
		require.NoError(t, err)
		require.Empty(t, spy.all())
	})

	t.Run("returns transport errors and stops the trace", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("connection refused")
		spy := &spyPerformance{}
		base := roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, wantErr
		})

		req, err := http.NewRequest(http.MethodPost, "http://localhost/graphql", bytes.NewBufferString(body))
		require.NoError(t, err)

		_, err = NewTransport(base, New(perf.Static(spy))).RoundTrip(req)
		require.ErrorIs(t, err, wantErr)

		traces := spy.all()
		require.Len(t, traces, 1)
		_, stopped := traces[0].counts()
		require.Equal(t, 1, stopped)
	})
}
