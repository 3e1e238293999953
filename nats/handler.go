package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StatementHandler wraps a handler function to consume statement envelopes.
// The returned jetstream.MessageHandler extracts trace context from headers,
// creates a process span, decodes the envelope, then calls your handler.
//
// Messages that do not decode are terminated and never reach handler.
// The handler owns acknowledgement of decoded messages.
//
// Example:
//
//	consumer.Consume(nats.StatementHandler(func(ctx context.Context, env *nats.Envelope, msg jetstream.Msg) {
//	    store(ctx, env)
//	    msg.Ack()
//	}))
func StatementHandler(
	handler func(ctx context.Context, env *Envelope, msg jetstream.Msg),
	opts ...Option,
) jetstream.MessageHandler {
	return StatementHandlerWithProviders(handler, nil, nil, opts...)
}

// StatementHandlerWithProviders wraps a handler with explicit providers.
// If tp is nil, the global TracerProvider is used.
// If prop is nil, the global TextMapPropagator is used.
//
// Panics if handler is nil.
func StatementHandlerWithProviders(
	handler func(ctx context.Context, env *Envelope, msg jetstream.Msg),
	tp trace.TracerProvider,
	prop propagation.TextMapPropagator,
	opts ...Option,
) jetstream.MessageHandler {
	if handler == nil {
		panic("esotx/nats: handler must not be nil")
	}
	o := applyOptions(opts)

	if prop != nil {
		o.prop = prop
	}

	tracer := getTracer(tp, o)
	propagator := getPropagator(o)

	return func(msg jetstream.Msg) {
		parentCtx := ExtractHeaders(context.Background(), msg.Headers(), propagator)

		stream := ""
		consumerName := ""
		if metadata, err := msg.Metadata(); err == nil && metadata != nil {
			stream = metadata.Stream
			consumerName = metadata.Consumer
		}
		if o.stream != "" {
			stream = o.stream
		}

		msgID := ""
		if headers := msg.Headers(); headers != nil {
			msgID = headers.Get(nats.MsgIdHdr)
		}

		spanName := opTypeProcess + " " + stream
		ctx, span := tracer.Start(parentCtx, spanName,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(processAttributes(stream, consumerName, msg.Subject(), msgID, len(msg.Data()))...),
		)

		defer func() {
			if r := recover(); r != nil {
				span.RecordError(fmt.Errorf("panic: %v", r))
				span.SetStatus(codes.Error, "panic in handler")
				span.End()
				panic(r)
			}
			span.End()
		}()

		env, err := DecodeEnvelope(msg.Data())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if termErr := msg.TermWithReason("invalid statement envelope"); termErr != nil {
				otel.Handle(termErr)
			}

			return
		}

		span.SetAttributes(attribute.String(attrESOperation, env.Operation))
		handler(ctx, env, msg)
	}
}
