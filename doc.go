// Package esotx provides config-driven OpenTelemetry setup for services that
// talk to Elasticsearch, and the entry point to its instrumentation packages.
//
// # Overview
//
//   - [TelemetryConfig] loads from YAML/JSON and OTEL_* / ESOTX_* environment
//     variables ([LoadConfig], [ParseConfig]).
//   - [Setup] builds tracer, meter and logger providers with OTLP (gRPC or
//     HTTP), console or no-op exporters.
//   - [ElasticsearchConfig.Options] turns the elasticsearch section into
//     options for the elasticsearch package.
//   - Span helpers ([Start], [RecordError], [SetSuccess]) and naming helpers
//     ([NameDB], [NameMessaging], [NameHTTP]).
//
// Sub-packages:
//
//   - resolver: maps an Elasticsearch REST method and path to an operation name,
//     scope path and index.
//   - elasticsearch: wraps calls or an http.RoundTripper, producing client spans,
//     metrics and captured statements.
//   - prom: Prometheus operation sink.
//   - nats: publishes captured statements to JetStream and consumes them.
//
// # Quick Start
//
//	cfg, err := esotx.LoadConfig("telemetry.yaml")
//	if err != nil {
//	    return err
//	}
//	tel, err := esotx.Setup(ctx, cfg, "search-api")
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	opts, err := cfg.Elasticsearch.Options()
//	if err != nil {
//	    return err
//	}
//	client, err := elasticsearch.NewClient(elasticsearch7.Config{
//	    Addresses: []string{"http://localhost:9200"},
//	}, elasticsearch.WithInstrumentation(opts...))
//
// # Configuration
//
//	enabled: true                      # ESOTX_ENABLED
//	serviceName: search-api            # OTEL_SERVICE_NAME
//	otlp:
//	  endpoint: otel-collector:4317    # OTEL_EXPORTER_OTLP_ENDPOINT
//	traces:
//	  sampling:
//	    sampler: parentbased_traceidratio
//	    samplerArg: 0.1
//	metrics:
//	  enabled: true
//	elasticsearch:
//	  captureStatements: true          # ESOTX_CAPTURE_STATEMENTS
//	  maxStatementSize: 4096
//	  statementFilter: 'del(.query)'   # jq expression
//	  nats:
//	    enabled: true
//	    url: nats://127.0.0.1:4222
//	  prometheus:
//	    enabled: true
//	    addr: ":9464"
package esotx

// Version is reported in the exporter user agent and as the esotx.version
// resource attribute.
const Version = "0.4.0"
