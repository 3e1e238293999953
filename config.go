//revive:disable:line-length-limit
package esotx

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/arloliu/esotx/elasticsearch"
)

// TelemetryConfig configures telemetry export and the Elasticsearch instrumentation.
// Environment variable names for the OTel sections follow the OTel specification:
// https://opentelemetry.io/docs/specs/otel/configuration/sdk-environment-variables/
type TelemetryConfig struct {
	// Enabled controls whether providers are built at all.
	Enabled *bool `yaml:"enabled" default:"false" env:"ESOTX_ENABLED"`

	// ServiceName is the name of the service for telemetry identification.
	// Maps to OTEL_SERVICE_NAME.
	ServiceName string `yaml:"serviceName" env:"OTEL_SERVICE_NAME" validate:"required_if=Enabled true"`

	// Version is reported as the service.version resource attribute.
	Version string `yaml:"version" env:"OTEL_SERVICE_VERSION"`

	// Environment is reported as the deployment.environment resource attribute.
	Environment string `yaml:"environment" env:"OTEL_DEPLOYMENT_ENVIRONMENT" default:"development"`

	// ResourceAttributes contains additional resource attributes.
	// Maps to OTEL_RESOURCE_ATTRIBUTES (comma-separated key=value pairs).
	ResourceAttributes map[string]string `yaml:"resourceAttributes,omitempty" env:"OTEL_RESOURCE_ATTRIBUTES"`

	// OTLP holds exporter settings shared by traces, logs and metrics.
	OTLP *OTLPConfig `yaml:"otlp,omitempty"`

	Traces  *TracesConfig  `yaml:"traces,omitempty"`
	Logs    *LogsConfig    `yaml:"logs,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`

	// Propagation maps to OTEL_PROPAGATORS.
	Propagation *PropConfig `yaml:"propagation,omitempty"`

	// Elasticsearch configures operation and statement capture.
	Elasticsearch *ElasticsearchConfig `yaml:"elasticsearch,omitempty"`
}

// OTLPConfig contains shared OTLP exporter settings.
type OTLPConfig struct {
	// Endpoint is the OTLP collector endpoint.
	// Maps to OTEL_EXPORTER_OTLP_ENDPOINT.
	//
	// Format depends on protocol:
	//   - gRPC: "host:port" (e.g., "localhost:4317"). Do NOT include scheme.
	//   - HTTP: Full URL with scheme (e.g., "http://localhost:4318/v1/traces").
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`

	// Insecure disables TLS. Maps to OTEL_EXPORTER_OTLP_INSECURE.
	Insecure *bool `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`

	// Headers adds custom headers to OTLP requests.
	// Avoid logging this value, as it may contain credentials.
	Headers map[string]string `yaml:"headers,omitempty" env:"OTEL_EXPORTER_OTLP_HEADERS"`

	// Protocol is one of "grpc", "http/protobuf", "http".
	Protocol string `yaml:"protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL" default:"grpc" validate:"oneof=grpc http/protobuf http"`

	Timeout time.Duration `yaml:"timeout" env:"OTEL_EXPORTER_OTLP_TIMEOUT" default:"10s" validate:"gte=0"`

	// Compression is "gzip" or "none".
	Compression string `yaml:"compression,omitempty" env:"OTEL_EXPORTER_OTLP_COMPRESSION" validate:"omitempty,oneof=gzip none"`
}

// IsInsecure returns true if insecure connection is enabled.
func (c *OTLPConfig) IsInsecure() bool {
	return c == nil || c.Insecure == nil || *c.Insecure
}

// TracesConfig configures the tracing subsystem.
type TracesConfig struct {
	// Enabled defaults to true when the parent config is enabled.
	Enabled *bool `yaml:"enabled" default:"true"`

	// Exporter is one of "otlp", "console", "stdout", "none".
	// Maps to OTEL_TRACES_EXPORTER.
	Exporter string `yaml:"exporter" env:"OTEL_TRACES_EXPORTER" default:"otlp" validate:"oneof=otlp console stdout none"`

	// Endpoint overrides OTLP.Endpoint for traces.
	Endpoint string `yaml:"endpoint,omitempty" env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`

	Sampling *SamplingConfig `yaml:"sampling,omitempty"`
}

// IsEnabled returns true if tracing is enabled.
func (c *TracesConfig) IsEnabled() bool {
	return c == nil || c.Enabled == nil || *c.Enabled
}

// LogsConfig configures OTel log export. Captured statements are emitted
// through it when the statement log sink is in use.
type LogsConfig struct {
	// Enabled defaults to false.
	Enabled *bool `yaml:"enabled" default:"false"`

	// Exporter maps to OTEL_LOGS_EXPORTER.
	Exporter string `yaml:"exporter" env:"OTEL_LOGS_EXPORTER" default:"otlp" validate:"oneof=otlp console stdout none"`

	// Endpoint overrides OTLP.Endpoint for logs.
	Endpoint string `yaml:"endpoint,omitempty" env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
}

// IsEnabled returns true if OTel log export is enabled.
func (c *LogsConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// MetricsConfig configures the metrics subsystem.
type MetricsConfig struct {
	// Enabled defaults to false.
	Enabled *bool `yaml:"enabled" default:"false"`

	// Exporter maps to OTEL_METRICS_EXPORTER.
	Exporter string `yaml:"exporter" env:"OTEL_METRICS_EXPORTER" default:"otlp" validate:"oneof=otlp console stdout none"`

	// Endpoint overrides OTLP.Endpoint for metrics.
	Endpoint string `yaml:"endpoint,omitempty" env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`

	// Interval maps to OTEL_METRIC_EXPORT_INTERVAL (milliseconds if numeric).
	Interval time.Duration `yaml:"interval,omitempty" env:"OTEL_METRIC_EXPORT_INTERVAL" default:"60s" validate:"omitempty,gt=0"`
}

// IsEnabled returns true if metrics collection is enabled.
func (c *MetricsConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// SamplingConfig maps to OTEL_TRACES_SAMPLER and OTEL_TRACES_SAMPLER_ARG.
type SamplingConfig struct {
	Sampler string `yaml:"sampler" env:"OTEL_TRACES_SAMPLER" default:"parentbased_always_on" validate:"oneof=always_on always_off traceidratio parentbased_always_on parentbased_always_off parentbased_traceidratio"`

	// SamplerArg is the ratio for ratio-based samplers, 0.0 to 1.0.
	SamplerArg float64 `yaml:"samplerArg" env:"OTEL_TRACES_SAMPLER_ARG" default:"1.0" validate:"gte=0,lte=1"`
}

// PropConfig configures context propagation.
type PropConfig struct {
	// Propagators is a comma-separated list, maps to OTEL_PROPAGATORS.
	// Known values: "tracecontext", "baggage", "b3", "b3multi", "jaeger", "xray", "none".
	Propagators string `yaml:"propagators" env:"OTEL_PROPAGATORS" default:"tracecontext,baggage"`
}

// HasTraceContext returns true if tracecontext propagator is enabled.
func (c *PropConfig) HasTraceContext() bool {
	if c == nil || c.Propagators == "" {
		return true
	}

	return containsPropagator(c.Propagators, "tracecontext")
}

// HasBaggage returns true if baggage propagator is enabled.
func (c *PropConfig) HasBaggage() bool {
	if c == nil || c.Propagators == "" {
		return true
	}

	return containsPropagator(c.Propagators, "baggage")
}

func containsPropagator(propagators, name string) bool {
	return slices.Contains(splitPropagators(propagators), name)
}

func splitPropagators(propagators string) []string {
	if propagators == "" {
		return nil
	}

	var result []string
	for p := range strings.SplitSeq(propagators, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}

	return result
}

// ElasticsearchConfig configures the Elasticsearch instrumentation.
type ElasticsearchConfig struct {
	// CaptureStatements enables statement capture. Statements may contain
	// user data, so it defaults to false.
	CaptureStatements *bool `yaml:"captureStatements" env:"ESOTX_CAPTURE_STATEMENTS" default:"false"`

	// MaxStatementSize caps the statement length in bytes. 0 means unlimited.
	MaxStatementSize int `yaml:"maxStatementSize" env:"ESOTX_MAX_STATEMENT_SIZE" default:"4096" validate:"gte=0"`

	// StatementFilter is a jq expression applied to every statement,
	// e.g. `del(.query)`. A filter producing no output drops the statement.
	StatementFilter string `yaml:"statementFilter,omitempty" env:"ESOTX_STATEMENT_FILTER"`

	// BaggageKeys lists baggage members copied onto operation spans.
	BaggageKeys []string `yaml:"baggageKeys,omitempty"`

	// MetricScopePath keeps the scope path attribute on OTel metrics. Scope
	// paths embed document ids, so high-volume clusters should disable it.
	MetricScopePath *bool `yaml:"metricScopePath" env:"ESOTX_METRIC_SCOPE_PATH" default:"true"`

	// HTTPSpans adds an otelhttp child span per request.
	HTTPSpans bool `yaml:"httpSpans" env:"ESOTX_HTTP_SPANS" default:"false"`

	NATS       *NATSConfig       `yaml:"nats,omitempty"`
	Prometheus *PrometheusConfig `yaml:"prometheus,omitempty"`
}

// NATSConfig configures publishing of captured statements to JetStream.
type NATSConfig struct {
	Enabled       *bool  `yaml:"enabled" default:"false" env:"ESOTX_NATS_ENABLED"`
	URL           string `yaml:"url" default:"nats://127.0.0.1:4222" env:"NATS_URL"`
	Stream        string `yaml:"stream" default:"ESOTX_STATEMENTS" env:"ESOTX_NATS_STREAM"`
	SubjectPrefix string `yaml:"subjectPrefix" default:"esotx.statements" env:"ESOTX_NATS_SUBJECT_PREFIX"`
	Async         *bool  `yaml:"async" default:"true" env:"ESOTX_NATS_ASYNC"`
}

// IsAsync reports whether statements are published without waiting for the ack.
// Returns true when unset.
func (c *NATSConfig) IsAsync() bool {
	return c == nil || c.Async == nil || *c.Async
}

// IsEnabled returns true if statement publishing is enabled.
func (c *NATSConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// PrometheusConfig configures the Prometheus operation sink.
type PrometheusConfig struct {
	Enabled   *bool  `yaml:"enabled" default:"false" env:"ESOTX_PROMETHEUS_ENABLED"`
	Addr      string `yaml:"addr" default:":9464" env:"ESOTX_PROMETHEUS_ADDR"`
	Namespace string `yaml:"namespace,omitempty"`

	// ScopePathLabel adds the scope_path label. Scope paths embed index names,
	// so disable it for clusters with many indices.
	ScopePathLabel *bool `yaml:"scopePathLabel" default:"true"`
}

// IsEnabled returns true if the Prometheus sink is enabled.
func (c *PrometheusConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// HasScopePathLabel reports whether the scope_path label is enabled.
func (c *PrometheusConfig) HasScopePathLabel() bool {
	return c == nil || c.ScopePathLabel == nil || *c.ScopePathLabel
}

// IsCaptureEnabled returns true if statement capture is enabled.
func (c *ElasticsearchConfig) IsCaptureEnabled() bool {
	return c != nil && c.CaptureStatements != nil && *c.CaptureStatements
}

// HasMetricScopePath reports whether OTel metrics keep the scope path attribute.
func (c *ElasticsearchConfig) HasMetricScopePath() bool {
	return c == nil || c.MetricScopePath == nil || *c.MetricScopePath
}

// Options translates the config into instrumentation options.
// A nil config yields no options. The statement filter is compiled here,
// so an invalid expression is reported before any traffic flows.
func (c *ElasticsearchConfig) Options() ([]elasticsearch.Option, error) {
	if c == nil {
		return nil, nil
	}

	opts := []elasticsearch.Option{
		elasticsearch.WithStatementCapture(c.IsCaptureEnabled()),
		elasticsearch.WithMaxStatementSize(c.MaxStatementSize),
		elasticsearch.WithHTTPSpans(c.HTTPSpans),
	}
	if len(c.BaggageKeys) > 0 {
		opts = append(opts, elasticsearch.WithBaggageKeys(c.BaggageKeys...))
	}
	if c.StatementFilter != "" {
		filter, err := elasticsearch.NewStatementFilter(c.StatementFilter)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch.statementFilter: %w", err)
		}
		opts = append(opts, elasticsearch.WithStatementFilter(filter))
	}

	return opts, nil
}

// IsEnabled returns true if telemetry is enabled.
func (c *TelemetryConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// SamplingConfig returns the trace sampling config, nil when unset.
func (c *TelemetryConfig) SamplingConfig() *SamplingConfig {
	if c == nil || c.Traces == nil {
		return nil
	}

	return c.Traces.Sampling
}

// TracesExporter returns the effective traces exporter type.
func (c *TelemetryConfig) TracesExporter() string {
	if c == nil || c.Traces == nil || c.Traces.Exporter == "" {
		return "otlp"
	}

	return c.Traces.Exporter
}

// OTLPEndpoint returns the effective OTLP endpoint for traces.
// Traces.Endpoint takes priority over OTLP.Endpoint.
func (c *TelemetryConfig) OTLPEndpoint() string {
	if c == nil {
		return "localhost:4317"
	}
	if c.Traces != nil && c.Traces.Endpoint != "" {
		return c.Traces.Endpoint
	}
	if c.OTLP != nil && c.OTLP.Endpoint != "" {
		return c.OTLP.Endpoint
	}

	return "localhost:4317"
}

// OTLPSettings returns the shared OTLP config, never nil.
func (c *TelemetryConfig) OTLPSettings() *OTLPConfig {
	if c == nil || c.OTLP == nil {
		return &OTLPConfig{}
	}

	return c.OTLP
}

func boolPtr(v bool) *bool { return &v }
