// Package engine drives scenarios through an instrumented Elasticsearch client
// against an in-process fake cluster.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/esotx"
	"github.com/arloliu/esotx/cmd/es-sim/scenario"
	"github.com/arloliu/esotx/elasticsearch"
	esnats "github.com/arloliu/esotx/nats"
	"github.com/arloliu/esotx/prom"
	"github.com/arloliu/esotx/resolver"
	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"
	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/arloliu/esotx/cmd/es-sim"

var ndjsonOperations = []string{"Bulk", "MultiSearch", "MultiSearchTemplate"}

// Config holds engine configuration.
type Config struct {
	Telemetry *esotx.TelemetryConfig
	// JitterPct varies delays and latencies by up to this percentage.
	JitterPct int
	// RateLimit caps fake cluster requests per second; 0 disables it.
	RateLimit int
	Logger    zerolog.Logger
}

// Result summarizes one scenario run.
type Result struct {
	Requests int
	// Failures counts responses with status >= 400.
	Failures int
	// Errors counts requests that got no response at all.
	Errors int
}

// Engine issues scenario requests and reports them through esotx.
type Engine struct {
	tel       *esotx.Telemetry
	client    *elasticsearch7.Client
	cluster   *http.Server
	addr      string
	registry  *prometheus.Registry
	metrics   *http.Server
	nc        *nats.Conn
	jitterPct int
	log       zerolog.Logger
}

// New sets up telemetry, starts the fake cluster and builds the client.
// Telemetry that is disabled as a whole leaves the global providers in place.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	tel, err := esotx.Setup(ctx, cfg.Telemetry, tracerName)
	if err != nil && !errors.Is(err, esotx.ErrDisabled) {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	e := &Engine{
		tel:       tel,
		jitterPct: cfg.JitterPct,
		log:       cfg.Logger,
	}

	if err := e.startCluster(cfg.RateLimit); err != nil {
		_ = e.Shutdown(ctx)
		return nil, err
	}

	opts, err := e.instrumentation(ctx, cfg.Telemetry)
	if err != nil {
		_ = e.Shutdown(ctx)
		return nil, err
	}

	client, err := elasticsearch.NewClient(elasticsearch7.Config{
		Addresses:    []string{"http://" + e.addr},
		DisableRetry: true,
	},
		elasticsearch.WithResponseHeaderTimeout(30*time.Second),
		elasticsearch.WithInstrumentation(opts...),
	)
	if err != nil {
		_ = e.Shutdown(ctx)
		return nil, err
	}
	e.client = client

	return e, nil
}

func (e *Engine) startCluster(rateLimit int) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen for fake cluster: %w", err)
	}

	e.addr = ln.Addr().String()
	e.cluster = &http.Server{
		Handler:           NewFakeCluster(FakeClusterOptions{RateLimit: rateLimit}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := e.cluster.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error().Err(err).Msg("fake cluster stopped")
		}
	}()
	e.log.Debug().Str("addr", e.addr).Msg("fake cluster listening")

	return nil
}

// instrumentation builds the client options, wiring the Prometheus, NATS
// and log sinks that the configuration enables.
func (e *Engine) instrumentation(ctx context.Context, tc *esotx.TelemetryConfig) ([]elasticsearch.Option, error) {
	var esCfg *esotx.ElasticsearchConfig
	if tc != nil {
		esCfg = tc.Elasticsearch
	}

	opts, err := esCfg.Options()
	if err != nil {
		return nil, err
	}
	if esCfg == nil {
		return opts, nil
	}

	if esCfg.Prometheus.IsEnabled() {
		sink, err := e.startMetrics(esCfg.Prometheus)
		if err != nil {
			return nil, err
		}
		opts = append(opts, elasticsearch.WithSink(sink))
	}

	if e.tel != nil && e.tel.LoggerProvider != nil && esCfg.IsCaptureEnabled() {
		opts = append(opts, elasticsearch.WithStatementSink(elasticsearch.NewLogSink(e.tel.LoggerProvider)))
	}

	if esCfg.NATS.IsEnabled() {
		if !esCfg.IsCaptureEnabled() {
			e.log.Warn().Msg("nats publishing is enabled but statement capture is off; nothing will be published")
		}
		pub, err := e.connectNATS(ctx, esCfg.NATS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, elasticsearch.WithStatementSink(pub))
	}

	return opts, nil
}

func (e *Engine) startMetrics(cfg *esotx.PrometheusConfig) (*prom.Sink, error) {
	e.registry = prometheus.NewRegistry()
	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sinkOpts := []prom.Option{
		prom.WithRegisterer(e.registry),
		prom.WithScopePathLabel(cfg.HasScopePathLabel()),
	}
	if cfg.Namespace != "" {
		sinkOpts = append(sinkOpts, prom.WithNamespace(cfg.Namespace))
	}
	sink, err := prom.NewSink(sinkOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus sink: %w", err)
	}

	if cfg.Addr == "" {
		return sink, nil
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}
	r := chi.NewRouter()
	r.Handle("/metrics", e.MetricsHandler())
	e.metrics = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := e.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	e.log.Info().Str("addr", ln.Addr().String()).Msg("serving prometheus metrics")

	return sink, nil
}

func (e *Engine) connectNATS(ctx context.Context, cfg *esotx.NATSConfig) (*esnats.StatementPublisher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("es-sim"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	e.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stream %s: %w", cfg.Stream, err)
	}
	e.log.Info().Str("stream", cfg.Stream).Str("prefix", cfg.SubjectPrefix).Msg("publishing statements to nats")

	return esnats.NewStatementPublisher(js,
		esnats.WithSubjectPrefix(cfg.SubjectPrefix),
		esnats.WithStream(cfg.Stream),
		esnats.WithAsync(cfg.IsAsync()),
	), nil
}

// ClusterURL returns the base URL of the fake cluster.
func (e *Engine) ClusterURL() string {
	return "http://" + e.addr
}

// MetricsHandler serves the engine's Prometheus registry, or 404 when
// Prometheus is not enabled.
func (e *Engine) MetricsHandler() http.Handler {
	if e.registry == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Shutdown stops the servers, drains NATS and flushes telemetry.
func (e *Engine) Shutdown(ctx context.Context) error {
	var errs []error
	if e.cluster != nil {
		errs = append(errs, e.cluster.Shutdown(ctx))
	}
	if e.metrics != nil {
		errs = append(errs, e.metrics.Shutdown(ctx))
	}
	if e.nc != nil {
		errs = append(errs, e.nc.Drain())
	}
	errs = append(errs, e.tel.Shutdown(ctx))

	return errors.Join(errs...)
}

// RunScenario issues every step of s under one root span.
func (e *Engine) RunScenario(ctx context.Context, s *scenario.Scenario) (Result, error) {
	ctx, span := esotx.StartInternal(ctx, "scenario "+s.Name,
		trace.WithAttributes(attribute.String("es_sim.scenario", s.Name)),
	)
	defer span.End()

	var res Result
	for _, step := range s.Steps {
		for range step.Times() {
			if err := sleep(ctx, e.applyJitter(step.Delay.AsDuration())); err != nil {
				return res, err
			}

			status, err := e.send(ctx, step)
			res.Requests++
			switch {
			case err != nil:
				res.Errors++
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				e.log.Warn().Err(err).Str("method", step.Method).Str("path", step.Path).Msg("request failed")
			case status >= http.StatusBadRequest:
				res.Failures++
				e.log.Debug().Int("status", status).Str("method", step.Method).Str("path", step.Path).Msg("request rejected")
			}
		}
	}
	span.SetAttributes(
		attribute.Int("es_sim.requests", res.Requests),
		attribute.Int("es_sim.failures", res.Failures),
	)
	if res.Errors > 0 {
		esotx.RecordError(ctx, fmt.Errorf("%d of %d requests got no response", res.Errors, res.Requests))
	}

	return res, nil
}

func (e *Engine) send(ctx context.Context, step scenario.Step) (int, error) {
	method := strings.ToUpper(step.Method)

	var body io.Reader
	if step.Body != "" {
		body = strings.NewReader(step.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, step.Target(), body)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType(method, step.Path))
	}
	if step.ErrorRate > 0 && rand.Float64() < step.ErrorRate { //nolint:gosec // weak rand is fine for simulation
		req.Header.Set(HeaderSimStatus, strconv.Itoa(step.FailureStatus()))
	}
	if d := e.applyJitter(step.Latency.AsDuration()); d > 0 {
		req.Header.Set(HeaderSimLatency, d.String())
	}

	resp, err := e.client.Perform(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func contentType(method, path string) string {
	if lo.Contains(ndjsonOperations, resolver.Resolve(method, path).Name) {
		return "application/x-ndjson"
	}

	return "application/json"
}

// applyJitter adds random timing variation to a duration.
func (e *Engine) applyJitter(d time.Duration) time.Duration {
	if e.jitterPct <= 0 || d <= 0 {
		return d
	}
	jitter := float64(d) * float64(e.jitterPct) / 100.0
	offset := (rand.Float64() * 2 * jitter) - jitter //nolint:gosec // weak rand is fine for jitter

	return d + time.Duration(offset)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
