package esotx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/esotx/elasticsearch"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ErrDisabled is returned when telemetry is disabled.
var ErrDisabled = errors.New("esotx: telemetry is disabled")

// ErrLogsDisabled is returned when log export is disabled.
var ErrLogsDisabled = errors.New("esotx: logs export is disabled")

// ErrMetricsDisabled is returned when metrics export is disabled.
var ErrMetricsDisabled = errors.New("esotx: metrics export is disabled")

// ErrServiceNameRequired is returned when ServiceName is empty but telemetry is enabled.
var ErrServiceNameRequired = errors.New("esotx: service name is required")

const (
	defaultMetricInterval = 60 * time.Second
	maxMetricTimeout      = 30 * time.Second

	attrEsotxVersion = "esotx.version"
)

// NewTracerProvider builds a TracerProvider from cfg and installs it, along
// with the configured propagator, as the global one.
// Returns ErrDisabled if telemetry or tracing is disabled.
func NewTracerProvider(ctx context.Context, cfg *TelemetryConfig) (*sdktrace.TracerProvider, error) {
	if !cfg.IsEnabled() || !cfg.Traces.IsEnabled() {
		return nil, ErrDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newTracerProvider(ctx, cfg, res)
}

// NewLoggerProvider builds a LoggerProvider from cfg and installs it as the
// global one. Pass it to elasticsearch.NewLogSink to export captured statements.
// Returns ErrLogsDisabled if log export is not enabled.
func NewLoggerProvider(ctx context.Context, cfg *TelemetryConfig) (*sdklog.LoggerProvider, error) {
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}
	if !cfg.Logs.IsEnabled() {
		return nil, ErrLogsDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newLoggerProvider(ctx, cfg, res)
}

// NewMeterProvider builds a MeterProvider from cfg and installs it as the
// global one. The elasticsearch meter sink records through it; when
// elasticsearch.metricScopePath is off, its scope path attribute is dropped.
// Returns ErrMetricsDisabled if metrics export is not enabled.
func NewMeterProvider(ctx context.Context, cfg *TelemetryConfig) (*sdkmetric.MeterProvider, error) {
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}
	if !cfg.Metrics.IsEnabled() {
		return nil, ErrMetricsDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newMeterProvider(ctx, cfg, res)
}

func newTracerProvider(ctx context.Context, cfg *TelemetryConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := buildTraceExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(buildSampler(cfg.SamplingConfig())),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(buildPropagator(cfg.Propagation))

	return tp, nil
}

func newLoggerProvider(ctx context.Context, cfg *TelemetryConfig, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	exporter, err := buildLogExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build log exporter: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp)

	return lp, nil
}

func newMeterProvider(ctx context.Context, cfg *TelemetryConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := buildMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build metric exporter: %w", err)
	}

	interval, timeout := metricSchedule(cfg.Metrics.Interval)
	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(interval),
		sdkmetric.WithTimeout(timeout),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(metricViews(cfg.Elasticsearch)...),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

// metricViews returns the views applied to the elasticsearch instruments.
func metricViews(es *ElasticsearchConfig) []sdkmetric.View {
	if es.HasMetricScopePath() {
		return nil
	}

	return []sdkmetric.View{
		sdkmetric.NewView(
			sdkmetric.Instrument{Scope: instrumentation.Scope{Name: elasticsearch.ScopeName}},
			sdkmetric.Stream{AttributeFilter: attribute.NewDenyKeysFilter(elasticsearch.ScopePathKey)},
		),
	}
}

// metricSchedule returns the export interval and the export timeout. The
// timeout never exceeds the interval so slow collectors cannot stack exports.
func metricSchedule(configured time.Duration) (time.Duration, time.Duration) {
	interval := normalizeMetricInterval(configured, defaultMetricInterval)

	return interval, min(interval, maxMetricTimeout)
}

// buildResource describes the instrumented service. Every provider built by
// one [Setup] shares the resource, and so its service.instance.id.
func buildResource(ctx context.Context, cfg *TelemetryConfig) (*resource.Resource, error) {
	if cfg.ServiceName == "" {
		return nil, ErrServiceNameRequired
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
		semconv.TelemetrySDKLanguageGo,
		attribute.String(attrEsotxVersion, Version),
	}
	if _, ok := cfg.ResourceAttributes[string(semconv.ServiceInstanceIDKey)]; !ok {
		attrs = append(attrs, semconv.ServiceInstanceID(uuid.NewString()))
	}
	for key, value := range cfg.ResourceAttributes {
		if key != "" {
			attrs = append(attrs, attribute.String(key, value))
		}
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

// normalizeMetricInterval treats sub-millisecond values as milliseconds per OTel spec for numeric env vars.
func normalizeMetricInterval(value time.Duration, defaultValue time.Duration) time.Duration {
	if value <= 0 {
		return defaultValue
	}
	if value < time.Millisecond {
		return time.Duration(int64(value)) * time.Millisecond
	}

	return value
}

// buildSampler maps OTEL_TRACES_SAMPLER names to SDK samplers, defaulting to
// parentbased_always_on.
func buildSampler(cfg *SamplingConfig) sdktrace.Sampler {
	if cfg == nil {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}

	switch cfg.Sampler {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.SamplerArg)
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplerArg))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}
