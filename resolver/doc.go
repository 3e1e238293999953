// Package resolver classifies Elasticsearch REST calls into operation names.
//
// [Resolve] maps an HTTP method and URL path to a [Call] carrying a
// PascalCase operation name ("DocumentGet", "Search", "ClusterPendingTasks")
// together with the scope, index, type and operand segments of the path:
//
//	call := resolver.Resolve("GET", "/test/things/1")
//	call.Name      // "DocumentGet"
//	call.Index     // "Test"
//	call.Type      // "Things"
//	call.ScopePath // "test_things_1"
//
// Resolution is driven by a rule table keyed by the first reserved keyword of
// the path (the anchor, e.g. "_search" or "_cat"). Rules inside a family are
// ordered most specific first; each one constrains the number of leading
// resource segments, the shape of the segments after the anchor and the HTTP
// method. Paths without a keyword are classified by segment count and method.
// Calls no rule matches are named [Unknown].
//
// Resolution is pure and safe for concurrent use.
package resolver
