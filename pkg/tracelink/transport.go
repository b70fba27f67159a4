package tracelink

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/buger/jsonparser"
	"github.com/wundergraph/cosmo/tracelink/pkg/link"
)

// NewTransport wraps base so that every GraphQL request sent through it runs
// through l. This lets any GraphQL client built on net/http use the trace link.
// Requests and responses are passed through untouched.
func NewTransport(base http.RoundTripper, l link.Link) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{
		rt:   base,
		link: l,
	}
}

type transport struct {
	rt   http.RoundTripper
	link link.Link
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	gqlReq, body, err := readGraphQLRequest(r)
	if err != nil {
		return nil, err
	}

	op := link.NewOperation(r.Context(), gqlReq)

	result := t.link.Request(op, func(op *link.Operation) *link.Observable {
		return link.NewObservable(func() (*link.Response, error) {
			req := r.Clone(op.Context())
			if body != nil {
				req.Body = io.NopCloser(bytes.NewReader(body))
				req.GetBody = func() (io.ReadCloser, error) {
					return io.NopCloser(bytes.NewReader(body)), nil
				}
			}

			res, err := t.rt.RoundTrip(req)
			if err != nil {
				return nil, err
			}

			op.SetContext(link.ResponseContextKey, res)
			return &link.Response{HTTPResponse: res}, nil
		})
	})
	if result == nil {
		return nil, link.ErrNoResponse
	}

	resp, err := result.Await()
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.HTTPResponse == nil {
		return nil, link.ErrNoResponse
	}
	return resp.HTTPResponse, nil
}

// readGraphQLRequest extracts the GraphQL request from the JSON body of a POST
// request or from the query string of a GET request. The returned body must
// be used to replay the request because r.Body is consumed.
func readGraphQLRequest(r *http.Request) (link.Request, []byte, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		return link.Request{
			Query:         q.Get("query"),
			OperationName: q.Get("operationName"),
			Variables:     []byte(q.Get("variables")),
		}, nil, nil
	}

	if r.Body == nil || r.Body == http.NoBody {
		return link.Request{}, nil, nil
	}

	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return link.Request{}, nil, fmt.Errorf("failed to read request body: %w", err)
	}

	query, _ := jsonparser.GetString(body, "query")
	operationName, _ := jsonparser.GetString(body, "operationName")
	variables, _, _, _ := jsonparser.Get(body, "variables")

	return link.Request{
		Query:         query,
		OperationName: operationName,
		Variables:     variables,
	}, body, nil
}
