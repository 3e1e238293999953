// Package nats streams captured Elasticsearch statements over NATS JetStream.
//
// Statements are wrapped in an [Envelope] and published to
// "<prefix>.<operation>", e.g. "esotx.statements.Search". Publish and process
// spans follow the OTel messaging semantic conventions, and trace context
// travels in message headers so consumers continue the trace of the
// Elasticsearch call that produced the statement.
//
// # Publishing
//
// A StatementPublisher is a statement sink for the elasticsearch package:
//
//	js, _ := jetstream.New(nc)
//	pub := nats.NewStatementPublisher(js, nats.WithSubjectPrefix("search.statements"))
//
//	es, _ := esinst.NewClient(cfg, esinst.WithInstrumentation(
//	    esinst.WithStatementCapture(true),
//	    esinst.WithStatementSink(pub),
//	))
//
// # Consuming
//
// Use StatementHandler for callback-style consumption:
//
//	consumer.Consume(nats.StatementHandler(func(ctx context.Context, env *nats.Envelope, msg jetstream.Msg) {
//	    index(ctx, env)
//	    msg.Ack()
//	}, nats.WithStream("STATEMENTS")))
//
// # Semantic Conventions
//
//   - Producer spans use kind PRODUCER with name "publish {subject}"
//   - Process spans use kind CONSUMER with name "process {stream}"
//
// For more details, see https://opentelemetry.io/docs/specs/semconv/messaging/
package nats
