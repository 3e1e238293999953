package esotx

import "github.com/arloliu/esotx/internal/tracker"

// SpanNamer defines how operation names are transformed into span names.
// The namer installed with [InitTracing] also applies to Elasticsearch
// operation spans.
type SpanNamer interface {
	Name(operation string) string
}

// DefaultNamer returns operation names unchanged, as OTel semantic
// conventions recommend.
type DefaultNamer struct{}

// Name returns the operation name as is.
func (DefaultNamer) Name(operation string) string {
	return operation
}

// PrefixNamer prepends a fixed prefix, e.g. to tell clusters apart.
type PrefixNamer struct {
	Prefix string
}

// Name returns Prefix followed by operation.
func (n PrefixNamer) Name(operation string) string {
	return n.Prefix + operation
}

// NameHTTP returns "METHOD /route". Example: "GET /{index}/_search".
func NameHTTP(method, route string) string {
	return method + " " + route
}

// NameMessaging returns "verb destination". Example: "publish esotx.statements.Search".
func NameMessaging(verb, destination string) string {
	return verb + " " + destination
}

// NameDB returns "operation collection", or operation alone when collection
// is empty. Example: "Search SearchableListings".
func NameDB(operation, collection string) string {
	return tracker.DBSpanName(operation, collection)
}
