package elasticsearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracer(t *testing.T) (*tracetest.InMemoryExporter, *trace.TracerProvider) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(trace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return exporter, tp
}

func spanAttrMap(span tracetest.SpanStub) map[string]any {
	result := make(map[string]any)
	for _, attr := range span.Attributes {
		result[string(attr.Key)] = attr.Value.AsInterface()
	}

	return result
}

// spansNamed returns the spans whose db.operation.name equals op.
func spansNamed(spans tracetest.SpanStubs, op string) []tracetest.SpanStub {
	var out []tracetest.SpanStub
	for _, s := range spans {
		if spanAttrMap(s)[attrDBOperationName] == op {
			out = append(out, s)
		}
	}

	return out
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (fn roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return fn(r)
}

// newFakeES starts a server answering like an Elasticsearch 7 node: the root
// endpoint returns cluster info and every other path returns body with status.
func newFakeES(t *testing.T, status int, body string, inspect func(*http.Request)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(`{"version":{"number":"7.17.0","build_flavor":"default"},"tagline":"You Know, for Search"}`))
			return
		}
		if inspect != nil {
			inspect(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}

	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) Records() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]sdklog.Record(nil), e.records...)
}

type statementRecorder struct {
	mu         sync.Mutex
	statements []Statement
}

func (r *statementRecorder) NotifyStatement(_ context.Context, st Statement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, st)
}

func (r *statementRecorder) all() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Statement(nil), r.statements...)
}

type operationRecorder struct {
	mu  sync.Mutex
	ops []Operation
}

func (r *operationRecorder) NotifyOperation(_ context.Context, op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *operationRecorder) named(name string) []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Operation
	for _, op := range r.ops {
		if op.Call.Name == name {
			out = append(out, op)
		}
	}

	return out
}
