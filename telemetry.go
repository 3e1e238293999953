package esotx

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/sdk/resource"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry bundles the providers built from one TelemetryConfig.
// Providers for disabled signals are nil.
type Telemetry struct {
	Resource       *resource.Resource
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
}

// Setup builds every enabled provider on one shared resource and installs
// them globally. Disabled signals are skipped. When tracing is on, the global
// tracer used by [Start] is set to tracerName with [DefaultNamer].
//
// Returns ErrDisabled if telemetry is disabled as a whole.
func Setup(ctx context.Context, cfg *TelemetryConfig, tracerName string) (*Telemetry, error) {
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	t := &Telemetry{Resource: res}

	if cfg.Traces.IsEnabled() {
		tp, err := newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("tracer provider: %w", err)
		}
		t.TracerProvider = tp
		InitTracing(tp.Tracer(tracerName), DefaultNamer{})
	}

	if cfg.Metrics.IsEnabled() {
		mp, err := newMeterProvider(ctx, cfg, res)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("meter provider: %w", err)
		}
		t.MeterProvider = mp
	}

	if cfg.Logs.IsEnabled() {
		lp, err := newLoggerProvider(ctx, cfg, res)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("logger provider: %w", err)
		}
		t.LoggerProvider = lp
	}

	return t, nil
}

// Shutdown flushes and stops every provider, joining their errors.
// It is safe to call on a nil Telemetry.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error
	if t.TracerProvider != nil {
		errs = append(errs, t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		errs = append(errs, t.MeterProvider.Shutdown(ctx))
	}
	if t.LoggerProvider != nil {
		errs = append(errs, t.LoggerProvider.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
