package otelconfig

import (
	"fmt"
	"net/url"
)

// Endpoint is the parsed form of an OTLP collector URL.
type Endpoint struct {
	// HostPort includes the port when one was given
	HostPort string
	Insecure bool
}

// ParseEndpoint parses a collector URL. Every scheme other than https is
// treated as plaintext.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid OpenTelemetry endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("invalid OpenTelemetry endpoint %q: missing host", raw)
	}
	return Endpoint{
		HostPort: u.Host,
		Insecure: u.Scheme != "https",
	}, nil
}
