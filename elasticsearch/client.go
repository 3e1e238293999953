package elasticsearch

import (
	"fmt"
	"net"
	"net/http"
	"time"

	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// clientConfig holds configuration for client creation.
type clientConfig struct {
	// Transport-level timeouts
	dialTimeout           time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration

	// Connection pool settings
	maxIdleConnsPerHost int
	maxConnsPerHost     int
	idleConnTimeout     time.Duration

	instrumentation []Option
}

// ClientOption configures a client created by [NewClient].
type ClientOption func(*clientConfig)

// WithDialTimeout sets the timeout for dialing TCP connections.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.dialTimeout = d
	}
}

// WithTLSHandshakeTimeout sets the timeout for TLS handshakes.
func WithTLSHandshakeTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.tlsHandshakeTimeout = d
	}
}

// WithResponseHeaderTimeout sets the time to wait for response headers after writing the request.
func WithResponseHeaderTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.responseHeaderTimeout = d
	}
}

// WithMaxIdleConnsPerHost sets the max idle connections to keep per node.
func WithMaxIdleConnsPerHost(n int) ClientOption {
	return func(c *clientConfig) {
		c.maxIdleConnsPerHost = n
	}
}

// WithMaxConnsPerHost sets the max total connections per node.
func WithMaxConnsPerHost(n int) ClientOption {
	return func(c *clientConfig) {
		c.maxConnsPerHost = n
	}
}

// WithIdleConnTimeout sets the maximum amount of time an idle (keep-alive)
// connection will remain idle before closing itself.
func WithIdleConnTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.idleConnTimeout = d
	}
}

// WithInstrumentation passes instrumentation options to the client transport.
func WithInstrumentation(opts ...Option) ClientOption {
	return func(c *clientConfig) {
		c.instrumentation = append(c.instrumentation, opts...)
	}
}

// NewClient creates an instrumented go-elasticsearch client.
//
// The transport in cfg (http.DefaultTransport when nil) is tuned by the client
// options and wrapped with [Transport]. Global providers are used.
//
// Usage:
//
//	es, err := esinst.NewClient(elasticsearch7.Config{Addresses: addrs},
//	    esinst.WithResponseHeaderTimeout(5*time.Second),
//	    esinst.WithInstrumentation(esinst.WithStatementCapture(true)),
//	)
func NewClient(cfg elasticsearch7.Config, opts ...ClientOption) (*elasticsearch7.Client, error) {
	return NewClientWithProviders(cfg, nil, nil, nil, opts...)
}

// NewClientWithProviders creates an instrumented go-elasticsearch client using
// explicitly provided TracerProvider, MeterProvider, and TextMapPropagator.
//
// If any provider is nil, the corresponding global provider will be used as fallback.
func NewClientWithProviders(
	cfg elasticsearch7.Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	prop propagation.TextMapPropagator,
	opts ...ClientOption,
) (*elasticsearch7.Client, error) {
	config := &clientConfig{}
	for _, opt := range opts {
		opt(config)
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	cfg.Transport = TransportWithProviders(buildTransport(base, config), tp, mp, prop, config.instrumentation...)

	client, err := elasticsearch7.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return client, nil
}

// buildTransport applies the transport settings to a clone of base.
// A base that is not an *http.Transport is returned as is.
func buildTransport(base http.RoundTripper, c *clientConfig) http.RoundTripper {
	t, ok := base.(*http.Transport)
	if !ok {
		return base
	}
	transport := t.Clone()

	if c.dialTimeout > 0 {
		transport.DialContext = (&net.Dialer{
			Timeout:   c.dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}

	if c.tlsHandshakeTimeout > 0 {
		transport.TLSHandshakeTimeout = c.tlsHandshakeTimeout
	}

	if c.responseHeaderTimeout > 0 {
		transport.ResponseHeaderTimeout = c.responseHeaderTimeout
	}

	if c.maxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = c.maxIdleConnsPerHost
	}

	if c.maxConnsPerHost > 0 {
		transport.MaxConnsPerHost = c.maxConnsPerHost
	}

	if c.idleConnTimeout > 0 {
		transport.IdleConnTimeout = c.idleConnTimeout
	}

	return transport
}
