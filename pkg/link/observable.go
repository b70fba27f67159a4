package link

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"go.uber.org/zap/zapcore"
)

var ErrNoResponse = errors.New("link: chain produced no response")

// GraphQLError is a single entry of the "errors" list of a GraphQL response.
type GraphQLError struct {
	Message    string          `json:"message"`
	Path       []any           `json:"path,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// Response is the single terminal value of an operation.
type Response struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     []GraphQLError  `json:"errors,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`

	// HTTPResponse is the transport response the value was produced from.
	// Its body is consumed unless the response was produced by a
	// RoundTripper adapter that forwards the body untouched.
	HTTPResponse *http.Response `json:"-"`
}

func (r *Response) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if r.HTTPResponse != nil {
		enc.AddInt("status_code", r.HTTPResponse.StatusCode)
	}
	enc.AddString("data_size", humanize.Bytes(uint64(len(r.Data))))
	enc.AddInt("errors", len(r.Errors))
	for i, e := range r.Errors {
		enc.AddString(fmt.Sprintf("error_%d", i), e.Message)
	}
	return nil
}

// Observable is a lazily produced, single value response stream.
// The producer runs at most once, on the first call to Await; later calls
// return the memoized result.
type Observable struct {
	produce func() (*Response, error)

	once sync.Once
	resp *Response
	err  error
}

// NewObservable returns an Observable backed by produce.
func NewObservable(produce func() (*Response, error)) *Observable {
	return &Observable{produce: produce}
}

// Of returns an Observable that emits resp.
func Of(resp *Response) *Observable {
	return NewObservable(func() (*Response, error) {
		return resp, nil
	})
}

// Failed returns an Observable that terminates with err.
func Failed(err error) *Observable {
	return NewObservable(func() (*Response, error) {
		return nil, err
	})
}

// Map returns an Observable that runs fn once with the terminal value of o.
// fn is called for errors as well as responses.
func (o *Observable) Map(fn func(*Response, error) (*Response, error)) *Observable {
	return NewObservable(func() (*Response, error) {
		return fn(o.Await())
	})
}

// Await subscribes to the stream and blocks until its terminal value is known.
func (o *Observable) Await() (*Response, error) {
	if o == nil {
		return nil, ErrNoResponse
	}
	o.once.Do(func() {
		o.resp, o.err = o.produce()
	})
	return o.resp, o.err
}
