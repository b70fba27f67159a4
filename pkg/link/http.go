package link

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPLink is a terminating link that sends operations as JSON POST requests
// to a GraphQL endpoint.
type HTTPLink struct {
	client   *http.Client
	endpoint string
	headers  map[string]string
}

// HTTPOption configures an HTTPLink
type HTTPOption func(*HTTPLink)

// NewHTTPLink creates a terminating link for endpoint. The transport of the
// client is instrumented with otelhttp, so a span found in the operation
// context becomes the parent of the client span and is propagated to the server.
func NewHTTPLink(endpoint string, options ...HTTPOption) *HTTPLink {
	l := &HTTPLink{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		endpoint: endpoint,
		headers:  make(map[string]string),
	}

	for _, option := range options {
		option(l)
	}

	base := l.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client := *l.client
	client.Transport = otelhttp.NewTransport(base)
	l.client = &client

	return l
}

// WithHTTPClient sets the client used to send requests
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(l *HTTPLink) {
		if client != nil {
			l.client = client
		}
	}
}

// WithHeader adds a header to all requests
func WithHeader(key, value string) HTTPOption {
	return func(l *HTTPLink) {
		l.headers[key] = value
	}
}

// WithHeaders adds multiple headers to all requests
func WithHeaders(headers map[string]string) HTTPOption {
	return func(l *HTTPLink) {
		for key, value := range headers {
			l.headers[key] = value
		}
	}
}

type requestBody struct {
	Query         string          `json:"query"`
	OperationName string          `json:"operationName,omitempty"`
	Variables     json.RawMessage `json:"variables,omitempty"`
}

// Request ignores forward: HTTPLink always terminates the chain.
func (l *HTTPLink) Request(op *Operation, _ NextLink) *Observable {
	return NewObservable(func() (*Response, error) {
		return l.do(op)
	})
}

func (l *HTTPLink) do(op *Operation) (*Response, error) {
	body, err := json.Marshal(requestBody{
		Query:         op.Query,
		OperationName: op.OperationName,
		Variables:     op.Variables,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(op.Context(), http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	for key, value := range l.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/graphql-response+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error executing request: %w", err)
	}
	defer resp.Body.Close()

	op.SetContext(ResponseContextKey, resp)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	result := &Response{HTTPResponse: resp}
	if len(respBody) == 0 {
		return result, fmt.Errorf("empty response body, status code %d", resp.StatusCode)
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return result, fmt.Errorf("error decoding response body, status code %d: %w", resp.StatusCode, err)
	}

	return result, nil
}
