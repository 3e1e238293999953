package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arloliu/esotx/elasticsearch"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// MsgPublisher is the part of jetstream.JetStream used to publish statements.
type MsgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
	PublishMsgAsync(msg *nats.Msg, opts ...jetstream.PublishOpt) (jetstream.PubAckFuture, error)
}

// StatementPublisher publishes captured statements to JetStream.
// It implements [elasticsearch.StatementSink].
type StatementPublisher struct {
	js     MsgPublisher
	tracer trace.Tracer
	prop   propagation.TextMapPropagator
	opts   options
}

// NewStatementPublisher creates a StatementPublisher using the global providers.
func NewStatementPublisher(js MsgPublisher, opts ...Option) *StatementPublisher {
	return NewStatementPublisherWithProviders(js, nil, nil, opts...)
}

// NewStatementPublisherWithProviders creates a StatementPublisher with explicit providers.
// If tp is nil, the global TracerProvider is used.
// If prop is nil, the global TextMapPropagator is used (or opts.prop if set).
//
// Panics if js is nil.
func NewStatementPublisherWithProviders(
	js MsgPublisher,
	tp trace.TracerProvider,
	prop propagation.TextMapPropagator,
	opts ...Option,
) *StatementPublisher {
	if js == nil {
		panic("esotx/nats: JetStream must not be nil")
	}
	o := applyOptions(opts)

	// Explicit prop parameter takes precedence over option
	if prop != nil {
		o.prop = prop
	}

	return &StatementPublisher{
		js:     js,
		tracer: getTracer(tp, o),
		prop:   getPropagator(o),
		opts:   o,
	}
}

// NotifyStatement publishes the statement. Failures are reported to otel.Handle.
func (p *StatementPublisher) NotifyStatement(ctx context.Context, st elasticsearch.Statement) {
	if _, err := p.Publish(ctx, st); err != nil {
		otel.Handle(err)
	}
}

// Publish publishes the statement to "<prefix>.<operation>" with a producer
// span and returns the published envelope. The envelope ID doubles as the
// JetStream deduplication ID.
func (p *StatementPublisher) Publish(ctx context.Context, st elasticsearch.Statement) (*Envelope, error) {
	env := NewEnvelope(st)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("esotx/nats: encode envelope: %w", err)
	}

	subject := Subject(p.opts.subjectPrefix, env.Operation)
	spanName := opTypePublish + " " + subject

	// The statement outlives the Elasticsearch call that produced it.
	ctx, span := p.tracer.Start(context.WithoutCancel(ctx), spanName,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(publishAttributes(subject, env.ID, len(data))...),
	)
	defer span.End()

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  make(nats.Header),
	}
	msg.Header.Set(nats.MsgIdHdr, env.ID)
	InjectHeaders(ctx, msg, p.prop)

	if p.opts.async {
		if _, err := p.js.PublishMsgAsync(msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			return nil, fmt.Errorf("esotx/nats: publish %s: %w", subject, err)
		}

		return env, nil
	}

	if p.opts.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.publishTimeout)
		defer cancel()
	}

	ack, err := p.js.PublishMsg(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, fmt.Errorf("esotx/nats: publish %s: %w", subject, err)
	}

	if ack != nil {
		span.SetAttributes(
			attribute.String(attrNATSStream, ack.Stream),
			attribute.Int64(attrNATSSequence, int64(ack.Sequence)), //nolint:gosec // sequences fit in int64
		)
		if ack.Duplicate {
			span.SetAttributes(attribute.Bool(attrNATSDuplicate, true))
		}
	}

	return env, nil
}

var _ elasticsearch.StatementSink = (*StatementPublisher)(nil)
