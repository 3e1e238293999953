package elasticsearch

import (
	"github.com/arloliu/esotx/internal/tracker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "esotx/elasticsearch"

// ScopeName is the instrumentation scope of the spans and metrics recorded here.
const ScopeName = instrumentationName

// Vendor is the datastore vendor reported with every operation.
const Vendor = "Elasticsearch"

// options holds configuration for the instrumentation.
type options struct {
	tracerName        string
	prop              propagation.TextMapPropagator
	captureStatements bool
	maxStatementSize  int // 0 means unlimited
	statementFilter   *StatementFilter
	meterSink         bool
	httpSpans         bool
	baggageKeys       []string
	opSinks           []OperationSink
	stmtSinks         []StatementSink
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		tracerName:        instrumentationName,
		captureStatements: false,
		maxStatementSize:  4096,
		meterSink:         true,
	}
}

// Option configures the instrumentation.
type Option func(*options)

// WithTracerName sets a custom tracer name.
func WithTracerName(name string) Option {
	return func(o *options) {
		o.tracerName = name
	}
}

// WithPropagator sets the propagator used to inject trace context into
// outgoing requests. If not set, the global propagator is used.
func WithPropagator(prop propagation.TextMapPropagator) Option {
	return func(o *options) {
		o.prop = prop
	}
}

// WithStatementCapture enables or disables statement capture.
// Captured statements are attached to spans as db.query.text and handed to statement sinks.
// Default is false.
func WithStatementCapture(enabled bool) Option {
	return func(o *options) {
		o.captureStatements = enabled
	}
}

// WithMaxStatementSize limits the size in bytes of a captured statement.
// Larger statements keep their parameters and operands but drop the body.
// A value <= 0 disables the limit. Default is 4096.
func WithMaxStatementSize(n int) Option {
	return func(o *options) {
		o.maxStatementSize = n
	}
}

// WithStatementFilter rewrites captured statements with a jq filter before they
// are recorded, e.g. to redact fields. See [NewStatementFilter].
func WithStatementFilter(f *StatementFilter) Option {
	return func(o *options) {
		o.statementFilter = f
	}
}

// WithMetrics enables or disables the built-in OpenTelemetry metric sink.
// Default is true.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.meterSink = enabled
	}
}

// WithHTTPSpans adds an otelhttp layer below the operation span, producing an
// HTTP client span per attempt. Default is false.
func WithHTTPSpans(enabled bool) Option {
	return func(o *options) {
		o.httpSpans = enabled
	}
}

// WithBaggageKeys copies the named baggage members found in the request
// context onto operation spans.
func WithBaggageKeys(keys ...string) Option {
	return func(o *options) {
		o.baggageKeys = append(o.baggageKeys, keys...)
	}
}

// WithSink registers an operation sink.
func WithSink(s OperationSink) Option {
	return func(o *options) {
		if s != nil {
			o.opSinks = append(o.opSinks, s)
		}
	}
}

// WithStatementSink registers a statement sink. Statement sinks only receive
// statements when capture is enabled with [WithStatementCapture].
func WithStatementSink(s StatementSink) Option {
	return func(o *options) {
		if s != nil {
			o.stmtSinks = append(o.stmtSinks, s)
		}
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

// getTracer returns the tracer for operation spans.
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
