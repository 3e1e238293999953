package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arloliu/esotx"
	"github.com/arloliu/esotx/cmd/es-sim/scenario"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTracing(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	esotx.InitTracing(tp.Tracer("es-sim-test"), esotx.DefaultNamer{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
		esotx.InitTracing(nil, nil)
	})

	return sr
}

func disabledTelemetry(es *esotx.ElasticsearchConfig) *esotx.TelemetryConfig {
	disabled := false

	return &esotx.TelemetryConfig{Enabled: &disabled, Elasticsearch: es}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, e.Shutdown(ctx))
	})

	return e
}

func testScenario() *scenario.Scenario {
	return &scenario.Scenario{
		Name: "unit",
		Steps: []scenario.Step{
			{Method: "GET", Path: "/"},
			{
				Method:      "POST",
				Path:        "/logs/_search",
				Body:        `{"query":{"match":{"msg":"timeout"}}}`,
				ErrorRate:   1,
				ErrorStatus: http.StatusInternalServerError,
			},
			{Method: "GET", Path: "/logs/_doc/42", Repeat: 2},
			{Method: "POST", Path: "/_bulk", Body: "{\"index\":{\"_index\":\"logs\"}}\n{\"msg\":\"x\"}\n"},
		},
	}
}

func TestNew_TelemetryDisabled(t *testing.T) {
	e := newTestEngine(t, Config{Telemetry: disabledTelemetry(nil), Logger: zerolog.Nop()})

	assert.Nil(t, e.tel)
	assert.NotNil(t, e.client)
	assert.Contains(t, e.ClusterURL(), "http://127.0.0.1:")
}

func TestNew_InvalidStatementFilter(t *testing.T) {
	_, err := New(context.Background(), Config{
		Telemetry: disabledTelemetry(&esotx.ElasticsearchConfig{StatementFilter: "del(."}),
		Logger:    zerolog.Nop(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statementFilter")
}

func TestEngine_RunScenario(t *testing.T) {
	sr := setupTracing(t)
	e := newTestEngine(t, Config{Telemetry: disabledTelemetry(nil), Logger: zerolog.Nop()})

	res, err := e.RunScenario(context.Background(), testScenario())
	require.NoError(t, err)
	assert.Equal(t, Result{Requests: 5, Failures: 1}, res)

	spans := sr.Ended()
	names := lo.Map(spans, func(s sdktrace.ReadOnlySpan, _ int) string { return s.Name() })
	assert.Contains(t, names, "scenario unit")
	assert.Contains(t, names, "Search logs")
	assert.Contains(t, names, "DocumentGet logs")
	assert.Contains(t, names, "Bulk")

	root, ok := lo.Find(spans, func(s sdktrace.ReadOnlySpan) bool { return s.Name() == "scenario unit" })
	require.True(t, ok)

	clientSpans := lo.Filter(spans, func(s sdktrace.ReadOnlySpan, _ int) bool {
		return s.SpanKind() == trace.SpanKindClient && s.Parent().SpanID() == root.SpanContext().SpanID()
	})
	assert.GreaterOrEqual(t, len(clientSpans), 5)
}

func TestEngine_Prometheus(t *testing.T) {
	enabled := true
	e := newTestEngine(t, Config{
		Telemetry: disabledTelemetry(&esotx.ElasticsearchConfig{
			Prometheus: &esotx.PrometheusConfig{Enabled: &enabled, Namespace: "sim"},
		}),
		Logger: zerolog.Nop(),
	})

	_, err := e.RunScenario(context.Background(), testScenario())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	e.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "sim_client_operations_total")
	assert.Contains(t, body, `operation="DocumentGet"`)
	assert.Contains(t, body, `outcome="error"`)
	assert.Contains(t, body, "go_goroutines")
}

func TestEngine_MetricsHandlerDisabled(t *testing.T) {
	e := &Engine{}

	rec := httptest.NewRecorder()
	e.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEngine_StatementCapture(t *testing.T) {
	enabled := true
	e := newTestEngine(t, Config{
		Telemetry: disabledTelemetry(&esotx.ElasticsearchConfig{
			CaptureStatements: &enabled,
			StatementFilter:   "del(.query)",
		}),
		Logger: zerolog.Nop(),
	})

	res, err := e.RunScenario(context.Background(), &scenario.Scenario{
		Name:  "filter",
		Steps: []scenario.Step{{Method: "POST", Path: "/logs/_count", Body: `{"query":{"match_all":{}}}`}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requests)
	assert.Zero(t, res.Failures)
}

func TestEngine_RunScenario_Canceled(t *testing.T) {
	e := newTestEngine(t, Config{Telemetry: disabledTelemetry(nil), Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &scenario.Scenario{
		Name:  "slow",
		Steps: []scenario.Step{{Method: "GET", Path: "/", Delay: scenario.Duration(time.Second)}},
	}
	res, err := e.RunScenario(ctx, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, res.Requests)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/x-ndjson", contentType("POST", "/_bulk"))
	assert.Equal(t, "application/x-ndjson", contentType("GET", "/logs/_msearch"))
	assert.Equal(t, "application/json", contentType("POST", "/logs/_search"))
}

func TestSleep(t *testing.T) {
	require.NoError(t, sleep(context.Background(), 0))
	require.NoError(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
}

func TestEngine_ApplyJitter_ZeroPercent(t *testing.T) {
	e := &Engine{jitterPct: 0}
	d := 100 * time.Millisecond

	assert.Equal(t, d, e.applyJitter(d))
}

func TestEngine_ApplyJitter_NegativePercent(t *testing.T) {
	e := &Engine{jitterPct: -10}
	d := 100 * time.Millisecond

	assert.Equal(t, d, e.applyJitter(d))
}

func TestEngine_ApplyJitter_ZeroDuration(t *testing.T) {
	e := &Engine{jitterPct: 50}

	assert.Zero(t, e.applyJitter(0))
}

func TestEngine_ApplyJitter_WithJitter(t *testing.T) {
	e := &Engine{jitterPct: 50}
	d := 100 * time.Millisecond

	seenDifferent := false
	for range 100 {
		result := e.applyJitter(d)
		assert.GreaterOrEqual(t, result, 50*time.Millisecond)
		assert.LessOrEqual(t, result, 150*time.Millisecond)

		if result != d {
			seenDifferent = true
		}
	}

	assert.True(t, seenDifferent, "jitter should produce varied results")
}
