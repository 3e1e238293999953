package elasticsearch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestTransport_RecordsRequest(t *testing.T) {
	exporter, tp := setupTracer(t)

	var traceparent string
	srv := newFakeES(t, http.StatusOK, `{}`, func(r *http.Request) {
		traceparent = r.Header.Get("traceparent")
	})

	client := &http.Client{
		Transport: TransportWithProviders(nil, tp, nil, propagation.TraceContext{}, WithMetrics(false)),
	}

	resp, err := client.Get(srv.URL + "/test/things/1?routing=a")
	require.NoError(t, err)
	_ = resp.Body.Close()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "DocumentGet Test", spans[0].Name)
	assert.Equal(t, oteltrace.SpanKindClient, spans[0].SpanKind)

	attrs := spanAttrMap(spans[0])
	assert.Equal(t, int64(http.StatusOK), attrs[attrHTTPResponseStatus])
	assert.Equal(t, "/test/things/1", attrs[attrURLPath])

	require.NotEmpty(t, traceparent)
	assert.Contains(t, traceparent, spans[0].SpanContext.TraceID().String())
}

func TestTransport_ServerErrorMarksSpan(t *testing.T) {
	exporter, tp := setupTracer(t)
	srv := newFakeES(t, http.StatusInternalServerError, `{"error":"boom"}`, nil)

	client := &http.Client{Transport: TransportWithProviders(nil, tp, nil, nil, WithMetrics(false))}

	resp, err := client.Get(srv.URL + "/test/_search")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "500", spanAttrMap(spans[0])[attrErrorType])
}

func TestTransport_CapturesAndRestoresBody(t *testing.T) {
	_, tp := setupTracer(t)
	stmts := &statementRecorder{}

	var received string
	srv := newFakeES(t, http.StatusOK, `{}`, func(r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		received = string(data)
	})

	rt := TransportWithProviders(nil, tp, nil, nil,
		WithMetrics(false),
		WithStatementCapture(true),
		WithStatementSink(stmts),
	)

	body := `{"query":{"match":{"title":"test"}}}`
	tests := []struct {
		name   string
		reader func() io.Reader
	}{
		// http.NewRequest sets GetBody for *strings.Reader.
		{"replayable", func() io.Reader { return strings.NewReader(body) }},
		{"stream", func() io.Reader { return io.MultiReader(strings.NewReader(body)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			received = ""
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/test/_search?size=1", tt.reader())
			require.NoError(t, err)

			resp, err := rt.RoundTrip(req)
			require.NoError(t, err)
			_ = resp.Body.Close()

			assert.Equal(t, body, received)

			got := stmts.all()
			require.NotEmpty(t, got)
			assert.JSONEq(t, `{"query":{"match":{"title":"test"}},"size":"1","additional_parameters":[]}`, got[len(got)-1].Text)
		})
	}
}

type failingBody struct {
	data   io.Reader
	err    error
	closed bool
}

func (b *failingBody) Read(p []byte) (int, error) {
	n, err := b.data.Read(p)
	if err == io.EOF {
		return n, b.err
	}

	return n, err
}

func (b *failingBody) Close() error {
	b.closed = true
	return nil
}

func TestTransport_BodyReadErrorPropagates(t *testing.T) {
	exporter, tp := setupTracer(t)
	ops := &operationRecorder{}

	sent := false
	base := roundTripperFunc(func(*http.Request) (*http.Response, error) {
		sent = true
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})

	rt := TransportWithProviders(base, tp, nil, nil,
		WithMetrics(false),
		WithStatementCapture(true),
		WithSink(ops),
	)

	body := &failingBody{data: strings.NewReader(`{"a":1,"b":`), err: errSomething}
	req, err := http.NewRequest(http.MethodPost, "http://es.local/test/_doc", body)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.ErrorIs(t, err, errSomething)
	assert.Nil(t, resp)
	assert.False(t, sent)
	assert.True(t, body.closed)

	got := ops.named("DocumentCreate")
	require.Len(t, got, 1)
	require.ErrorIs(t, got[0].Err, errSomething)

	spans := spansNamed(exporter.GetSpans(), "DocumentCreate")
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestTransport_HTTPSpans(t *testing.T) {
	exporter, tp := setupTracer(t)
	srv := newFakeES(t, http.StatusOK, `{}`, nil)

	client := &http.Client{
		Transport: TransportWithProviders(nil, tp, nil, nil, WithMetrics(false), WithHTTPSpans(true)),
	}

	resp, err := client.Get(srv.URL + "/_cluster/health")
	require.NoError(t, err)
	_ = resp.Body.Close()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	ops := spansNamed(spans, "ClusterHealth")
	require.Len(t, ops, 1)
	opSpan := ops[0]
	httpSpan := spans[0]
	if httpSpan.SpanContext.SpanID() == opSpan.SpanContext.SpanID() {
		httpSpan = spans[1]
	}
	assert.Equal(t, oteltrace.SpanKindClient, httpSpan.SpanKind)
	assert.Equal(t, opSpan.SpanContext.SpanID(), httpSpan.Parent.SpanID())
}

func TestNewClient_TransportErrorPropagates(t *testing.T) {
	exporter, tp := setupTracer(t)
	ops := &operationRecorder{}

	client, err := NewClientWithProviders(elasticsearch7.Config{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errSomething
		}),
	}, tp, nil, nil, WithInstrumentation(WithMetrics(false), WithSink(ops)))
	require.NoError(t, err)

	_, err = client.Search(
		client.Search.WithContext(context.Background()),
		client.Search.WithIndex("myindex"),
		client.Search.WithBody(strings.NewReader(`{"query":{"match":{"title":"test"}}}`)),
	)
	require.ErrorIs(t, err, errSomething)

	// The product check runs first and fails, so the search is never sent.
	info := ops.named("ServerGet")
	require.Len(t, info, 1)
	assert.Same(t, errSomething, info[0].Err)
	assert.Empty(t, ops.named("Search"))

	spans := spansNamed(exporter.GetSpans(), "ServerGet")
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestNewClient_InfoRequest(t *testing.T) {
	_, tp := setupTracer(t)
	ops := &operationRecorder{}

	client, err := NewClientWithProviders(elasticsearch7.Config{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errSomething
		}),
	}, tp, nil, nil, WithInstrumentation(WithMetrics(false), WithSink(ops)))
	require.NoError(t, err)

	req := esapi.InfoRequest{}
	_, err = req.Do(context.Background(), client)
	require.ErrorIs(t, err, errSomething)
	assert.NotEmpty(t, ops.named("ServerGet"))
}

func TestNewClient_Search(t *testing.T) {
	exporter, tp := setupTracer(t)
	stmts := &statementRecorder{}

	var path string
	srv := newFakeES(t, http.StatusOK, `{"took":1,"hits":{"total":{"value":0},"hits":[]}}`, func(r *http.Request) {
		path = r.URL.Path
	})

	client, err := NewClientWithProviders(elasticsearch7.Config{Addresses: []string{srv.URL}}, tp, nil, nil,
		WithResponseHeaderTimeout(5*time.Second),
		WithMaxIdleConnsPerHost(4),
		WithInstrumentation(
			WithMetrics(false),
			WithStatementCapture(true),
			WithStatementSink(stmts),
		),
	)
	require.NoError(t, err)

	res, err := client.Search(
		client.Search.WithContext(context.Background()),
		client.Search.WithIndex("searchable-listings-production"),
		client.Search.WithBody(strings.NewReader(`{"query":{"match_all":{}}}`)),
	)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.False(t, res.IsError())
	assert.Equal(t, "/searchable-listings-production/_search", path)

	spans := spansNamed(exporter.GetSpans(), "Search")
	require.Len(t, spans, 1)
	assert.Equal(t, "Search SearchableListings", spans[0].Name)
	assert.Equal(t, "searchable-listings-production", spanAttrMap(spans[0])[attrESScopePath])

	got := stmts.all()
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, "Search", last.Operation)
	assert.JSONEq(t, `{"query":{"match_all":{}},"additional_parameters":[]}`, last.Text)
}

func TestBuildTransport(t *testing.T) {
	base := &http.Transport{}
	rt := buildTransport(base, &clientConfig{
		tlsHandshakeTimeout:   time.Second,
		responseHeaderTimeout: 2 * time.Second,
		maxIdleConnsPerHost:   3,
		maxConnsPerHost:       5,
		idleConnTimeout:       time.Minute,
		dialTimeout:           time.Second,
	})

	tr, ok := rt.(*http.Transport)
	require.True(t, ok)
	assert.NotSame(t, base, tr)
	assert.Equal(t, time.Second, tr.TLSHandshakeTimeout)
	assert.Equal(t, 2*time.Second, tr.ResponseHeaderTimeout)
	assert.Equal(t, 3, tr.MaxIdleConnsPerHost)
	assert.Equal(t, 5, tr.MaxConnsPerHost)
	assert.Equal(t, time.Minute, tr.IdleConnTimeout)
	assert.NotNil(t, tr.DialContext)

	custom := roundTripperFunc(func(*http.Request) (*http.Response, error) { return nil, errSomething })
	assert.NotNil(t, buildTransport(custom, &clientConfig{maxConnsPerHost: 1}))
}
