package elasticsearch

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/arloliu/esotx/internal/tracker"
	"github.com/arloliu/esotx/resolver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Request is what the instrumentation captures of a call before it runs.
type Request struct {
	Method string
	Path   string
	Params url.Values
	Body   []byte
}

// Operation describes one completed call.
type Operation struct {
	// Vendor is always [Vendor].
	Vendor string
	// Call is the resolved call.
	Call resolver.Call
	// Elapsed is the wall-clock duration of the call.
	Elapsed time.Duration
	// StatusCode is the HTTP response status, or 0 when unknown.
	StatusCode int
	// Err is the error returned by the call, if any.
	Err error
}

// Failed reports whether the call returned an error or a server error status.
func (op Operation) Failed() bool {
	return op.Err != nil || op.StatusCode >= http.StatusInternalServerError
}

// ErrorType returns a low-cardinality description of the failure, or "" on success.
func (op Operation) ErrorType() string {
	switch {
	case op.Err != nil:
		return errorType(op.Err)
	case op.StatusCode >= http.StatusInternalServerError:
		return strconv.Itoa(op.StatusCode)
	default:
		return ""
	}
}

// Statement is a captured statement, delivered when statement capture is enabled.
type Statement struct {
	Vendor    string
	Operation string
	ScopePath string
	Index     string
	// Text is the serialized JSON statement.
	Text      string
	Elapsed   time.Duration
	Truncated bool
}

// OperationSink receives every completed operation.
// Implementations must be safe for concurrent use and must not block for long.
type OperationSink interface {
	NotifyOperation(ctx context.Context, op Operation)
}

// StatementSink receives captured statements.
// Implementations must be safe for concurrent use and must not block for long.
type StatementSink interface {
	NotifyStatement(ctx context.Context, st Statement)
}

// OperationSinkFunc adapts a function to [OperationSink].
type OperationSinkFunc func(ctx context.Context, op Operation)

// NotifyOperation calls f(ctx, op).
func (f OperationSinkFunc) NotifyOperation(ctx context.Context, op Operation) { f(ctx, op) }

// StatementSinkFunc adapts a function to [StatementSink].
type StatementSinkFunc func(ctx context.Context, st Statement)

// NotifyStatement calls f(ctx, st).
func (f StatementSinkFunc) NotifyStatement(ctx context.Context, st Statement) { f(ctx, st) }

// Instrumenter records Elasticsearch calls as spans and notifies sinks.
// It is safe for concurrent use.
type Instrumenter struct {
	tracer    trace.Tracer
	opts      options
	opSinks   []OperationSink
	stmtSinks []StatementSink
}

// New creates an Instrumenter using the global providers.
func New(opts ...Option) *Instrumenter {
	return NewWithProviders(nil, nil, opts...)
}

// NewWithProviders creates an Instrumenter with explicit providers.
// If tp is nil, the global tracer (or TracerProvider) is used.
// If mp is nil, the global MeterProvider is used for the built-in metric sink.
func NewWithProviders(tp trace.TracerProvider, mp metric.MeterProvider, opts ...Option) *Instrumenter {
	o := applyOptions(opts)

	in := &Instrumenter{
		tracer:    getTracer(tp, o),
		opts:      o,
		opSinks:   append([]OperationSink(nil), o.opSinks...),
		stmtSinks: append([]StatementSink(nil), o.stmtSinks...),
	}

	if o.meterSink {
		sink, err := NewMeterSink(mp)
		if err != nil {
			otel.Handle(err)
		} else {
			in.opSinks = append(in.opSinks, sink)
		}
	}

	return in
}

// CapturesStatements reports whether statement capture is enabled.
func (in *Instrumenter) CapturesStatements() bool {
	return in.opts.captureStatements
}

// Wrap runs call as the Elasticsearch operation described by req.
//
// The request is resolved, a client span is started around call and, once
// call returns, the operation and (when capture is enabled) the statement are
// handed to the sinks. The error returned by call is returned unchanged.
func (in *Instrumenter) Wrap(ctx context.Context, req Request, call func(ctx context.Context) error) error {
	return in.observe(ctx, req, func(ctx context.Context) (int, error) {
		return 0, call(ctx)
	})
}

func (in *Instrumenter) observe(
	ctx context.Context,
	req Request,
	call func(ctx context.Context) (int, error),
) error {
	c := resolver.Resolve(req.Method, req.Path)

	ctx, span := in.tracer.Start(ctx, spanName(c),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(callAttributes(c)...),
	)
	defer span.End()

	if attrs := baggageAttributes(ctx, in.opts.baggageKeys); len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	var (
		stmt      string
		truncated bool
		captured  bool
	)
	if in.opts.captureStatements {
		var err error
		stmt, truncated, err = renderStatement(ctx, req, c.Operands, &in.opts)
		switch {
		case err == nil:
			captured = true
			span.SetAttributes(attribute.String(attrDBQueryText, stmt))
			if truncated {
				span.SetAttributes(attribute.Bool(attrESTruncated, true))
			}
		case !errors.Is(err, errStatementDropped):
			otel.Handle(err)
		}
	}

	start := time.Now()
	status, err := call(ctx)
	elapsed := time.Since(start)

	op := Operation{
		Vendor:     Vendor,
		Call:       c,
		Elapsed:    elapsed,
		StatusCode: status,
		Err:        err,
	}

	if status > 0 {
		span.SetAttributes(attribute.Int(attrHTTPResponseStatus, status))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(attrErrorType, op.ErrorType()))
	case op.Failed():
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.String(attrErrorType, op.ErrorType()))
	}

	for _, s := range in.opSinks {
		s.NotifyOperation(ctx, op)
	}

	if captured {
		st := Statement{
			Vendor:    Vendor,
			Operation: c.Name,
			ScopePath: c.ScopePath,
			Index:     c.Index,
			Text:      stmt,
			Elapsed:   elapsed,
			Truncated: truncated,
		}
		for _, s := range in.stmtSinks {
			s.NotifyStatement(ctx, st)
		}
	}

	return err
}

// spanName follows the database span naming convention, "operation collection",
// passed through the namer installed with esotx.InitTracing.
func spanName(c resolver.Call) string {
	return tracker.Name(tracker.DBSpanName(c.Name, c.Index))
}
