package otelconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	t.Parallel()

	e, err := ParseEndpoint("https://otel.example.com:4317")
	require.NoError(t, err)
	require.Equal(t, Endpoint{HostPort: "otel.example.com:4317", Insecure: false}, e)

	e, err = ParseEndpoint(DefaultEndpoint)
	require.NoError(t, err)
	require.Equal(t, Endpoint{HostPort: "localhost:4318", Insecure: true}, e)

	_, err = ParseEndpoint("localhost")
	require.ErrorContains(t, err, "missing host")

	_, err = ParseEndpoint("http://[::1")
	require.ErrorContains(t, err, "invalid OpenTelemetry endpoint")
}
