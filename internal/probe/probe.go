// Package probe periodically sends a fixed set of GraphQL operations to an
// endpoint through the trace link, producing one trace per operation.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/hasura/go-graphql-client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wundergraph/cosmo/tracelink/internal/jitterticker"
	"github.com/wundergraph/cosmo/tracelink/pkg/link"
	"github.com/wundergraph/cosmo/tracelink/pkg/tracelink"
)

type Operation struct {
	Name      string
	Query     string
	Variables map[string]any
}

type Options struct {
	Endpoint   string
	Headers    map[string]string
	Operations []Operation

	Interval  time.Duration
	MaxJitter time.Duration
	// Timeout bounds a single operation
	Timeout time.Duration

	// Link observes every operation. It is usually a *tracelink.Link.
	Link link.Link
	// Transport defaults to http.DefaultTransport
	Transport http.RoundTripper
	Logger    *zap.Logger
}

type Runner struct {
	client     *graphql.Client
	operations []Operation
	interval   time.Duration
	maxJitter  time.Duration
	timeout    time.Duration
	logger     *zap.Logger
}

func New(opts Options) (*Runner, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("probe endpoint is required")
	}
	if len(opts.Operations) == 0 {
		return nil, errors.New("at least one probe operation is required")
	}
	if opts.Link == nil {
		return nil, errors.New("probe link is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("invalid probe interval %s", opts.Interval)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	// The trace link wraps the instrumented transport, so the otelhttp span
	// of every request becomes a child of the operation trace.
	var rt http.RoundTripper = &headerTransport{rt: base, headers: opts.Headers}
	rt = otelhttp.NewTransport(rt)
	rt = tracelink.NewTransport(rt, opts.Link)

	httpClient := &http.Client{
		Transport: rt,
		Timeout:   opts.Timeout,
	}

	return &Runner{
		client:     graphql.NewClient(opts.Endpoint, httpClient),
		operations: opts.Operations,
		interval:   opts.Interval,
		maxJitter:  opts.MaxJitter,
		timeout:    opts.Timeout,
		logger:     logger.With(zap.String("component", "probe"), zap.String("endpoint", opts.Endpoint)),
	}, nil
}

// Run probes the endpoint once and then on every tick until ctx is done.
// Failed rounds are logged and do not stop the runner.
func (r *Runner) Run(ctx context.Context) error {
	ticker := jitterticker.NewTicker(r.interval, r.maxJitter)
	defer ticker.Stop()

	r.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.runAndLog(ctx)
		}
	}
}

func (r *Runner) runAndLog(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Warn("Probe round failed", zap.Error(err))
	}
}

// RunOnce sends every operation concurrently and waits for all of them.
// The returned error aggregates the failures of all operations.
func (r *Runner) RunOnce(ctx context.Context) error {
	var (
		mu     sync.Mutex
		result *multierror.Error
	)

	g, gCtx := errgroup.WithContext(ctx)

	for _, op := range r.operations {
		g.Go(func() error {
			if err := r.execute(gCtx, op); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("operation %q: %w", op.Name, err))
				mu.Unlock()
			}
			// Operations are independent, one failure must not cancel the others.
			return nil
		})
	}

	_ = g.Wait()

	return result.ErrorOrNil()
}

func (r *Runner) execute(ctx context.Context, op Operation) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var options []graphql.Option
	if op.Name != "" {
		options = append(options, graphql.OperationName(op.Name))
	}

	start := time.Now()
	data, err := r.client.ExecRaw(ctx, op.Query, op.Variables, options...)
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Debug("Probe operation failed",
			zap.String("operation_name", op.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}

	r.logger.Debug("Probe operation succeeded",
		zap.String("operation_name", op.Name),
		zap.Duration("elapsed", elapsed),
		zap.String("data_size", humanize.Bytes(uint64(len(data)))),
	)

	return nil
}

type headerTransport struct {
	rt      http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.rt.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.rt.RoundTrip(r)
}
