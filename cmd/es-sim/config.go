package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arloliu/esotx"
	"github.com/arloliu/fuda"
	"github.com/spf13/pflag"
)

// Config holds all CLI configuration.
// Uses fuda struct tags for defaults and env var binding.
type Config struct {
	// Export settings
	Endpoint    string `yaml:"endpoint" default:"localhost:4317" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	UseHTTP     bool   `yaml:"http" default:"false"`
	Insecure    *bool  `yaml:"insecure" default:"true" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName string `yaml:"serviceName" default:"es-sim" env:"OTEL_SERVICE_NAME"`
	Exporter    string `yaml:"exporter" default:"otlp" env:"OTEL_TRACES_EXPORTER"`

	// TelemetryFile is a full esotx YAML config. When set it replaces every
	// export and instrumentation flag.
	TelemetryFile string `yaml:"telemetryFile" env:"ESOTX_CONFIG"`

	// Scenario settings
	Scenario     string `yaml:"scenario" default:"search"`
	ScenarioFile string `yaml:"scenarioFile"`

	// Instrumentation
	EnableLogs      bool   `yaml:"logs" default:"false"`
	Capture         bool   `yaml:"capture" default:"false" env:"ESOTX_CAPTURE_STATEMENTS"`
	StatementFilter string `yaml:"statementFilter" env:"ESOTX_STATEMENT_FILTER"`
	HTTPSpans       bool   `yaml:"httpSpans" default:"false"`
	MetricsAddr     string `yaml:"metricsAddr" env:"ESOTX_PROMETHEUS_ADDR"`
	NATSURL         string `yaml:"natsURL" env:"NATS_URL"`

	// Fake cluster
	RateLimit int `yaml:"rateLimit" default:"0"`

	// Quick mode
	Count int `yaml:"count" default:"10"`

	// Continuous mode
	Duration time.Duration `yaml:"duration" default:"1m"`
	Rate     float64       `yaml:"rate" default:"1"`
	Jitter   int           `yaml:"jitter" default:"20"`
}

// IsInsecure returns the insecure value, defaulting to true if nil.
func (c *Config) IsInsecure() bool {
	if c.Insecure == nil {
		return true
	}

	return *c.Insecure
}

func newConfig() *Config {
	cfg := &Config{}
	_ = fuda.SetDefaults(cfg)

	return cfg
}

func (c *Config) bindCommonFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "OTLP endpoint")
	fs.BoolVar(&c.UseHTTP, "http", c.UseHTTP, "Use HTTP instead of gRPC")
	fs.Var(&optionalBool{p: &c.Insecure}, "insecure", "Disable TLS to the collector (default true)")
	fs.Lookup("insecure").NoOptDefVal = "true"
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name reported by the simulator")
	fs.StringVar(&c.Exporter, "exporter", c.Exporter, "Exporter for traces and logs: otlp, console or none")
	fs.StringVar(&c.TelemetryFile, "telemetry-config", c.TelemetryFile, "esotx YAML config, replaces the export flags")

	fs.StringVarP(&c.Scenario, "scenario", "s", c.Scenario, "Scenario name")
	fs.StringVar(&c.ScenarioFile, "scenario-file", c.ScenarioFile, "Custom YAML scenario file")

	fs.BoolVar(&c.EnableLogs, "logs", c.EnableLogs, "Export captured statements as OTel logs")
	fs.BoolVar(&c.Capture, "capture", c.Capture, "Capture request statements")
	fs.StringVar(&c.StatementFilter, "statement-filter", c.StatementFilter, "jq expression applied to captured statements")
	fs.BoolVar(&c.HTTPSpans, "http-spans", c.HTTPSpans, "Add an HTTP child span per request")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.StringVar(&c.NATSURL, "nats-url", c.NATSURL, "Publish captured statements to this NATS server")
	fs.IntVar(&c.RateLimit, "rate-limit", c.RateLimit, "Fake cluster request limit per second, 0 for none")
}

func (c *Config) applyEnvOverrides() {
	// fuda.LoadEnv reads env vars based on struct tags
	_ = fuda.LoadEnv(c)
}

// telemetryConfig builds the esotx config the engine runs with.
func (c *Config) telemetryConfig() (*esotx.TelemetryConfig, error) {
	if c.TelemetryFile != "" {
		return esotx.LoadConfig(c.TelemetryFile)
	}

	protocol := "grpc"
	if c.UseHTTP {
		protocol = "http/protobuf"
	}
	insecure := c.IsInsecure()

	tc := &esotx.TelemetryConfig{}
	if err := fuda.SetDefaults(tc); err != nil {
		return nil, fmt.Errorf("telemetry defaults: %w", err)
	}
	tc.Enabled = boolPtr(true)
	tc.ServiceName = c.ServiceName
	tc.Version = esotx.Version
	tc.OTLP = &esotx.OTLPConfig{Endpoint: c.Endpoint, Protocol: protocol, Insecure: &insecure}
	tc.Traces = &esotx.TracesConfig{Enabled: boolPtr(true), Exporter: c.Exporter}
	if c.EnableLogs {
		tc.Logs = &esotx.LogsConfig{Enabled: boolPtr(true), Exporter: c.Exporter}
	}

	es := &esotx.ElasticsearchConfig{}
	if err := fuda.SetDefaults(es); err != nil {
		return nil, fmt.Errorf("elasticsearch defaults: %w", err)
	}
	es.CaptureStatements = boolPtr(c.Capture)
	es.StatementFilter = c.StatementFilter
	es.HTTPSpans = c.HTTPSpans

	if c.MetricsAddr != "" {
		p := &esotx.PrometheusConfig{}
		_ = fuda.SetDefaults(p)
		p.Enabled = boolPtr(true)
		p.Addr = c.MetricsAddr
		es.Prometheus = p
	}
	if c.NATSURL != "" {
		n := &esotx.NATSConfig{}
		_ = fuda.SetDefaults(n)
		n.Enabled = boolPtr(true)
		n.URL = c.NATSURL
		es.NATS = n
	}
	tc.Elasticsearch = es

	return tc, nil
}

// optionalBool is a pflag.Value for *bool fields that stay nil until set.
type optionalBool struct {
	p **bool
}

func (b *optionalBool) String() string {
	if b.p == nil || *b.p == nil {
		return ""
	}

	return strconv.FormatBool(**b.p)
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b.p = &v

	return nil
}

func (*optionalBool) Type() string { return "bool" }

func boolPtr(v bool) *bool { return &v }
