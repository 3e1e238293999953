package elasticsearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Transport wraps an http.RoundTripper so that every request sent through it
// is recorded as an Elasticsearch operation.
//
// This transport uses the globally registered TracerProvider, MeterProvider, and
// TextMapPropagator. For explicit provider injection, use [TransportWithProviders].
//
// If base is nil, http.DefaultTransport is used.
//
// Usage:
//
//	es, err := elasticsearch7.NewClient(elasticsearch7.Config{
//	    Transport: esinst.Transport(http.DefaultTransport),
//	})
func Transport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	return TransportWithProviders(base, nil, nil, nil, opts...)
}

// TransportWithProviders wraps an http.RoundTripper using explicitly provided
// TracerProvider, MeterProvider, and TextMapPropagator.
//
// If any provider is nil, the corresponding global provider will be used as fallback.
// If base is nil, http.DefaultTransport is used.
func TransportWithProviders(
	base http.RoundTripper,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	prop propagation.TextMapPropagator,
	opts ...Option,
) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if prop != nil {
		opts = append(opts, WithPropagator(prop))
	}

	in := NewWithProviders(tp, mp, opts...)
	if in.opts.httpSpans {
		base = otelhttp.NewTransport(base, buildProviderOptions(tp, mp, prop)...)
	}

	return &roundTripper{
		base: base,
		in:   in,
		prop: getPropagator(in.opts),
	}
}

type roundTripper struct {
	base http.RoundTripper
	in   *Instrumenter
	prop propagation.TextMapPropagator
}

// RoundTrip implements http.RoundTripper. The request is never modified; the
// base transport receives a clone carrying the trace context headers.
func (rt *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	req := Request{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Params: r.URL.Query(),
	}

	body := r.Body
	if rt.in.CapturesStatements() && r.Body != nil && r.Body != http.NoBody {
		data, restored, err := captureBody(r)
		if err != nil {
			// A request whose body cannot be read is never sent.
			return nil, rt.in.observe(r.Context(), req, func(context.Context) (int, error) {
				return 0, err
			})
		}
		req.Body = data
		body = restored
	}

	var resp *http.Response
	err := rt.in.observe(r.Context(), req, func(ctx context.Context) (int, error) {
		out := r.Clone(ctx)
		out.Body = body
		rt.prop.Inject(ctx, propagation.HeaderCarrier(out.Header))

		var err error
		resp, err = rt.base.RoundTrip(out)
		if err != nil {
			return 0, err
		}

		return resp.StatusCode, nil
	})

	return resp, err
}

// captureBody returns a copy of the request body and a body to send in its place.
// On error the original body is closed and must not be sent.
func captureBody(r *http.Request) ([]byte, io.ReadCloser, error) {
	if r.GetBody != nil {
		rc, err := r.GetBody()
		if err == nil {
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err == nil {
				return data, r.Body, nil
			}
		}
	}

	data, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("read request body: %w", err)
	}

	return data, io.NopCloser(bytes.NewReader(data)), nil
}

// buildProviderOptions creates otelhttp.Option slice from providers.
// Falls back to global providers when explicit providers are nil.
func buildProviderOptions(
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	prop propagation.TextMapPropagator,
) []otelhttp.Option {
	opts := make([]otelhttp.Option, 0, 3)

	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	if mp != nil {
		opts = append(opts, otelhttp.WithMeterProvider(mp))
	}
	if prop != nil {
		opts = append(opts, otelhttp.WithPropagators(prop))
	}

	return opts
}
