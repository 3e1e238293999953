package nats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/esotx/elasticsearch"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var errPublish = errors.New("publish failed")

// mockPublisher implements MsgPublisher without a JetStream connection.
type mockPublisher struct {
	mu   sync.Mutex
	msgs []*nats.Msg

	publishMsgFunc      func(ctx context.Context, msg *nats.Msg) (*jetstream.PubAck, error)
	publishMsgAsyncFunc func(msg *nats.Msg) (jetstream.PubAckFuture, error)
}

func (m *mockPublisher) record(msg *nats.Msg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func (m *mockPublisher) PublishMsg(ctx context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	m.record(msg)
	if m.publishMsgFunc != nil {
		return m.publishMsgFunc(ctx, msg)
	}

	return &jetstream.PubAck{Stream: "STATEMENTS", Sequence: uint64(len(m.msgs))}, nil
}

func (m *mockPublisher) PublishMsgAsync(msg *nats.Msg, _ ...jetstream.PublishOpt) (jetstream.PubAckFuture, error) {
	m.record(msg)
	if m.publishMsgAsyncFunc != nil {
		return m.publishMsgAsyncFunc(msg)
	}

	return nil, nil
}

func testStatement() elasticsearch.Statement {
	return elasticsearch.Statement{
		Vendor:    elasticsearch.Vendor,
		Operation: "Search",
		ScopePath: "test",
		Index:     "Test",
		Text:      `{"query":{"match_all":{}},"additional_parameters":[]}`,
		Elapsed:   1500 * time.Microsecond,
	}
}

func TestStatementPublisher_Publish(t *testing.T) {
	exporter, tp := setupTest(t)
	mock := &mockPublisher{}
	pub := NewStatementPublisherWithProviders(mock, tp, propagation.TraceContext{}, WithAsync(false))

	ctx, parent := tp.Tracer("test").Start(context.Background(), "Search Test")
	env, err := pub.Publish(ctx, testStatement())
	parent.End()
	require.NoError(t, err)

	require.Len(t, mock.msgs, 1)
	msg := mock.msgs[0]
	assert.Equal(t, "esotx.statements.Search", msg.Subject)
	assert.Equal(t, env.ID, msg.Header.Get(nats.MsgIdHdr))
	assert.NotEmpty(t, msg.Header.Get("traceparent"))

	decoded, err := DecodeEnvelope(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, "Search", decoded.Operation)
	assert.Equal(t, "Test", decoded.Index)
	assert.InDelta(t, 1.5, decoded.ElapsedMS, 0.0001)
	assert.Equal(t, parent.SpanContext().TraceID().String(), decoded.TraceID)
	assert.JSONEq(t, testStatement().Text, string(decoded.Statement))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	publishSpan := spans[0]
	assert.Equal(t, "publish esotx.statements.Search", publishSpan.Name)
	assert.Equal(t, oteltrace.SpanKindProducer, publishSpan.SpanKind)
	assert.Equal(t, parent.SpanContext().SpanID(), publishSpan.Parent.SpanID())

	attrs := spanAttrMap(publishSpan)
	assert.Equal(t, "nats", attrs[attrMessagingSystem])
	assert.Equal(t, "esotx.statements.Search", attrs[attrMessagingDestinationName])
	assert.Equal(t, env.ID, attrs[attrMessagingMessageID])
	assert.Equal(t, "STATEMENTS", attrs[attrNATSStream])
	assert.Equal(t, int64(1), attrs[attrNATSSequence])
}

func TestStatementPublisher_SubjectPrefix(t *testing.T) {
	_, tp := setupTest(t)
	mock := &mockPublisher{}
	pub := NewStatementPublisherWithProviders(mock, tp, nil, WithSubjectPrefix("search.stmts."))

	_, err := pub.Publish(context.Background(), testStatement())
	require.NoError(t, err)

	require.Len(t, mock.msgs, 1)
	assert.Equal(t, "search.stmts.Search", mock.msgs[0].Subject)
}

func TestStatementPublisher_PublishError(t *testing.T) {
	exporter, tp := setupTest(t)
	mock := &mockPublisher{
		publishMsgFunc: func(context.Context, *nats.Msg) (*jetstream.PubAck, error) {
			return nil, errPublish
		},
	}
	pub := NewStatementPublisherWithProviders(mock, tp, nil, WithAsync(false))

	_, err := pub.Publish(context.Background(), testStatement())
	require.ErrorIs(t, err, errPublish)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestStatementPublisher_NotifyStatementReportsErrors(t *testing.T) {
	_, tp := setupTest(t)

	var handled []error
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		handled = append(handled, err)
	}))
	t.Cleanup(func() {
		otel.SetErrorHandler(otel.ErrorHandlerFunc(func(error) {}))
	})

	mock := &mockPublisher{
		publishMsgFunc: func(context.Context, *nats.Msg) (*jetstream.PubAck, error) {
			return nil, errPublish
		},
	}
	pub := NewStatementPublisherWithProviders(mock, tp, nil, WithAsync(false))

	assert.NotPanics(t, func() {
		pub.NotifyStatement(context.Background(), testStatement())
	})
	require.Len(t, handled, 1)
	assert.ErrorIs(t, handled[0], errPublish)
}

func TestStatementPublisher_CanceledCallerContext(t *testing.T) {
	_, tp := setupTest(t)

	var publishCtxErr error
	mock := &mockPublisher{
		publishMsgFunc: func(ctx context.Context, _ *nats.Msg) (*jetstream.PubAck, error) {
			publishCtxErr = ctx.Err()
			return &jetstream.PubAck{}, nil
		},
	}
	pub := NewStatementPublisherWithProviders(mock, tp, nil, WithAsync(false), WithPublishTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pub.Publish(ctx, testStatement())
	require.NoError(t, err)
	assert.NoError(t, publishCtxErr)
}

func TestStatementPublisher_AsyncByDefault(t *testing.T) {
	_, tp := setupTest(t)

	var asyncCalls int
	mock := &mockPublisher{
		publishMsgFunc: func(context.Context, *nats.Msg) (*jetstream.PubAck, error) {
			t.Fatal("synchronous publish used in async mode")
			return nil, nil
		},
		publishMsgAsyncFunc: func(*nats.Msg) (jetstream.PubAckFuture, error) {
			asyncCalls++
			return nil, nil
		},
	}
	pub := NewStatementPublisherWithProviders(mock, tp, nil)

	_, err := pub.Publish(context.Background(), testStatement())
	require.NoError(t, err)
	assert.Equal(t, 1, asyncCalls)
}

func TestStatementPublisher_SlowAckDoesNotDelayWrap(t *testing.T) {
	_, tp := setupTest(t)

	mock := &mockPublisher{
		// An ack that never arrives holds a synchronous publish until its timeout.
		publishMsgFunc: func(ctx context.Context, _ *nats.Msg) (*jetstream.PubAck, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	pub := NewStatementPublisherWithProviders(mock, tp, nil, WithPublishTimeout(5*time.Second))

	in := elasticsearch.NewWithProviders(tp, nil,
		elasticsearch.WithMetrics(false),
		elasticsearch.WithStatementCapture(true),
		elasticsearch.WithStatementSink(pub),
	)

	req := elasticsearch.Request{Method: "POST", Path: "/test/_search", Body: []byte(`{"size":1}`)}
	start := time.Now()
	require.NoError(t, in.Wrap(context.Background(), req, func(context.Context) error { return nil }))

	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, mock.msgs, 1)
	assert.Equal(t, "esotx.statements.Search", mock.msgs[0].Subject)
}

func TestStatementPublisher_NonJSONStatement(t *testing.T) {
	_, tp := setupTest(t)
	mock := &mockPublisher{}
	pub := NewStatementPublisherWithProviders(mock, tp, nil)

	st := testStatement()
	st.Text = "not json"
	_, err := pub.Publish(context.Background(), st)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(mock.msgs[0].Data, &raw))
	assert.Equal(t, "not json", raw["statement"])
}

func TestNewStatementPublisher_NilJetStream(t *testing.T) {
	assert.Panics(t, func() {
		NewStatementPublisher(nil)
	})
}

func TestStatementPublisher_AsElasticsearchSink(t *testing.T) {
	exporter, tp := setupTest(t)
	mock := &mockPublisher{}
	pub := NewStatementPublisherWithProviders(mock, tp, nil)

	in := elasticsearch.NewWithProviders(tp, nil,
		elasticsearch.WithMetrics(false),
		elasticsearch.WithStatementCapture(true),
		elasticsearch.WithStatementSink(pub),
	)

	req := elasticsearch.Request{Method: "GET", Path: "/test/_doc/1"}
	require.NoError(t, in.Wrap(context.Background(), req, func(context.Context) error { return nil }))

	require.Len(t, mock.msgs, 1)
	assert.Equal(t, "esotx.statements.DocumentGet", mock.msgs[0].Subject)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	// The publish span ends first and is a child of the operation span.
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}
