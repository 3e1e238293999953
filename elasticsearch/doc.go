// Package elasticsearch provides OpenTelemetry instrumentation for
// Elasticsearch REST calls.
//
// Every call is resolved to a canonical operation name by package resolver,
// recorded as a CLIENT span and handed to the registered sinks. Statement
// capture is opt-in.
//
// # Client
//
// Create an instrumented go-elasticsearch client:
//
//	es, err := esinst.NewClient(elasticsearch7.Config{
//	    Addresses: []string{"http://localhost:9200"},
//	}, esinst.WithInstrumentation(
//	    esinst.WithStatementCapture(true),
//	    esinst.WithStatementSink(esinst.NewLogSink(nil)),
//	))
//
// # Transport
//
// Any HTTP client talking to Elasticsearch can use the transport directly:
//
//	client := &http.Client{Transport: esinst.Transport(nil)}
//
// # Custom calls
//
// Calls not made over HTTP can be wrapped explicitly:
//
//	in := esinst.New()
//	err := in.Wrap(ctx, esinst.Request{Method: "GET", Path: "/test/_search"}, func(ctx context.Context) error {
//	    return doSearch(ctx)
//	})
package elasticsearch
