package nats

import (
	"time"

	"github.com/arloliu/esotx/internal/tracker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "esotx/nats"

// options holds configuration for the publisher and the handler.
type options struct {
	tracerName     string
	prop           propagation.TextMapPropagator
	subjectPrefix  string
	async          bool          // Publish without waiting for the ack
	publishTimeout time.Duration // Bounds synchronous publishes
	stream         string        // Override stream name for spans
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		tracerName:     instrumentationName,
		prop:           nil, // Will use global propagator
		subjectPrefix:  DefaultSubjectPrefix,
		async:          true,
		publishTimeout: 2 * time.Second,
	}
}

// Option configures the publisher or the handler.
type Option func(*options)

// WithTracerName sets a custom tracer name.
func WithTracerName(name string) Option {
	return func(o *options) {
		o.tracerName = name
	}
}

// WithPropagator sets a custom propagator for context injection/extraction.
// If not set, the global propagator is used.
func WithPropagator(prop propagation.TextMapPropagator) Option {
	return func(o *options) {
		o.prop = prop
	}
}

// WithSubjectPrefix sets the subject prefix. Default is [DefaultSubjectPrefix].
func WithSubjectPrefix(prefix string) Option {
	return func(o *options) {
		o.subjectPrefix = prefix
	}
}

// WithAsync publishes statements without waiting for the JetStream ack.
// Statement sinks run on the Elasticsearch caller's goroutine, so a synchronous
// publisher adds a JetStream round trip to every captured call. Default is true.
func WithAsync(enabled bool) Option {
	return func(o *options) {
		o.async = enabled
	}
}

// WithPublishTimeout bounds synchronous publishes. A value <= 0 disables the
// bound. Default is 2s.
func WithPublishTimeout(d time.Duration) Option {
	return func(o *options) {
		o.publishTimeout = d
	}
}

// WithStream sets an explicit stream name for span naming and attributes.
// Use this when the stream name cannot be determined from message metadata,
// or to override the auto-detected stream name.
func WithStream(stream string) Option {
	return func(o *options) {
		o.stream = stream
	}
}

// applyOptions applies option functions to the default options.
func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// getTracer returns a tracer from the provider with the configured name.
func getTracer(tp trace.TracerProvider, opts options) trace.Tracer {
	if tp != nil {
		return tp.Tracer(opts.tracerName)
	}

	if opts.tracerName == instrumentationName {
		if t := tracker.Tracer(); t != nil {
			return t
		}
	}

	return otel.GetTracerProvider().Tracer(opts.tracerName)
}

// getPropagator returns the configured or global propagator.
func getPropagator(opts options) propagation.TextMapPropagator {
	if opts.prop != nil {
		return opts.prop
	}

	return otel.GetTextMapPropagator()
}
