package nats

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// headerCarrier adapts nats.Header to propagation.TextMapCarrier.
type headerCarrier nats.Header

// Get returns the first value for key, or "" when absent.
func (c headerCarrier) Get(key string) string {
	vals := nats.Header(c).Values(key)
	if len(vals) > 0 {
		return vals[0]
	}

	return ""
}

// Set stores the key-value pair in the NATS headers.
func (c headerCarrier) Set(key, value string) {
	nats.Header(c).Set(key, value)
}

// Keys returns all keys in the NATS headers.
func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}

	return keys
}

// InjectHeaders injects the trace context of ctx into msg's headers,
// initializing them when nil. A nil prop uses the global propagator.
func InjectHeaders(ctx context.Context, msg *nats.Msg, prop propagation.TextMapPropagator) {
	if msg.Header == nil {
		msg.Header = make(nats.Header)
	}
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}

	prop.Inject(ctx, headerCarrier(msg.Header))
}

// ExtractHeaders returns ctx enriched with the trace context carried by
// header. A nil prop uses the global propagator.
func ExtractHeaders(ctx context.Context, header nats.Header, prop propagation.TextMapPropagator) context.Context {
	if header == nil {
		return ctx
	}
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}

	return prop.Extract(ctx, headerCarrier(header))
}
