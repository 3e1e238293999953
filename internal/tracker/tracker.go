// Package tracker holds the process-wide tracer and span namer shared by the
// root package and the instrumentation packages.
package tracker

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
)

// Namer determines how span names are formatted.
type Namer interface {
	Name(string) string
}

type identity struct{}

func (identity) Name(s string) string { return s }

type state struct {
	tracer trace.Tracer
	namer  Namer
}

var current atomic.Pointer[state]

func init() {
	current.Store(&state{namer: identity{}})
}

// Set replaces the shared tracer and namer. A nil namer keeps names as they are.
func Set(t trace.Tracer, n Namer) {
	if n == nil {
		n = identity{}
	}
	current.Store(&state{tracer: t, namer: n})
}

// Start begins a span on the shared tracer with the namer applied.
// Without a tracer it returns ctx and the span already in it.
func Start(ctx context.Context, operation string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := current.Load()
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return s.tracer.Start(ctx, s.namer.Name(operation), opts...)
}

// Tracer returns the shared tracer, or nil if none was set.
func Tracer() trace.Tracer {
	return current.Load().tracer
}

// Name applies the shared namer to operation.
func Name(operation string) string {
	return current.Load().namer.Name(operation)
}

// DBSpanName formats a database client span name, "operation collection",
// falling back to the bare operation when there is no collection.
func DBSpanName(operation, collection string) string {
	if collection == "" {
		return operation
	}

	return operation + " " + collection
}
