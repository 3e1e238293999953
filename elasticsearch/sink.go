package elasticsearch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names.
const (
	metricOperationDuration = "db.client.operation.duration"
	metricOperations        = "elasticsearch.client.operations"
)

// durationBuckets are the histogram boundaries in seconds recommended for
// database client operation durations.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// MeterSink records operations as OpenTelemetry metrics: a duration histogram
// and an operation counter, both keyed by operation name and scope path.
type MeterSink struct {
	duration metric.Float64Histogram
	count    metric.Int64Counter
}

// NewMeterSink creates the sink's instruments from mp, or from the global
// MeterProvider when mp is nil.
func NewMeterSink(mp metric.MeterProvider) (*MeterSink, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(metricOperationDuration,
		metric.WithUnit("s"),
		metric.WithDescription("Duration of Elasticsearch client operations."),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s histogram: %w", metricOperationDuration, err)
	}

	count, err := meter.Int64Counter(metricOperations,
		metric.WithUnit("{operation}"),
		metric.WithDescription("Number of Elasticsearch client operations."),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", metricOperations, err)
	}

	return &MeterSink{duration: duration, count: count}, nil
}

// NotifyOperation records the operation.
func (s *MeterSink) NotifyOperation(ctx context.Context, op Operation) {
	attrs := metric.WithAttributes(metricAttributes(op)...)
	s.duration.Record(ctx, op.Elapsed.Seconds(), attrs)
	s.count.Add(ctx, 1, attrs)
}

// LogSink emits each captured statement as an OpenTelemetry log record.
type LogSink struct {
	logger   otellog.Logger
	severity otellog.Severity
}

// NewLogSink creates a LogSink from lp, or from the global LoggerProvider when lp is nil.
func NewLogSink(lp otellog.LoggerProvider) *LogSink {
	if lp == nil {
		lp = global.GetLoggerProvider()
	}

	return &LogSink{
		logger:   lp.Logger(instrumentationName),
		severity: otellog.SeverityInfo,
	}
}

// NotifyStatement emits the statement. The record is correlated with the
// operation span carried by ctx.
func (s *LogSink) NotifyStatement(ctx context.Context, st Statement) {
	var rec otellog.Record
	rec.SetTimestamp(time.Now())
	rec.SetSeverity(s.severity)
	rec.SetSeverityText(s.severity.String())
	rec.SetBody(otellog.StringValue(st.Text))

	attrs := []otellog.KeyValue{
		otellog.String(attrDBSystem, dbSystem),
		otellog.String(attrDBOperationName, st.Operation),
		otellog.String(attrESScopePath, st.ScopePath),
		otellog.Float64("elasticsearch.elapsed_ms", float64(st.Elapsed)/float64(time.Millisecond)),
	}
	if st.Index != "" {
		attrs = append(attrs, otellog.String(attrDBCollectionName, st.Index))
	}
	if st.Truncated {
		attrs = append(attrs, otellog.Bool(attrESTruncated, true))
	}
	rec.AddAttributes(attrs...)

	s.logger.Emit(ctx, rec)
}

// errorType maps an error to the error.type attribute value.
func errorType(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return fmt.Sprintf("%T", err)
	}
}

var (
	_ OperationSink = (*MeterSink)(nil)
	_ StatementSink = (*LogSink)(nil)
)
