package elasticsearch

import (
	"context"

	"github.com/arloliu/esotx/resolver"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
)

// Database system identifier for Elasticsearch.
const dbSystem = "elasticsearch"

// ScopePathKey is the attribute carrying the scope path. It embeds index names
// and document ids.
const ScopePathKey = attribute.Key(attrESScopePath)

// Attribute keys following OTel database semantic conventions, plus
// Elasticsearch-specific keys under the elasticsearch. namespace.
const (
	attrDBSystem           = "db.system"
	attrDBOperationName    = "db.operation.name"
	attrDBCollectionName   = "db.collection.name"
	attrDBQueryText        = "db.query.text"
	attrHTTPRequestMethod  = "http.request.method"
	attrHTTPResponseStatus = "http.response.status_code"
	attrURLPath            = "url.path"
	attrErrorType          = "error.type"
	attrESScopePath        = "elasticsearch.scope_path"
	attrESType             = "elasticsearch.type"
	attrESAPI              = "elasticsearch.api"
	attrESOperands         = "elasticsearch.operands"
	attrESTruncated        = "elasticsearch.statement.truncated"
)

// callAttributes returns span attributes describing a resolved call.
func callAttributes(c resolver.Call) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 9)

	attrs = append(attrs,
		attribute.String(attrDBSystem, dbSystem),
		attribute.String(attrDBOperationName, c.Name),
		attribute.String(attrHTTPRequestMethod, c.Method),
		attribute.String(attrURLPath, c.Path),
	)

	if c.Index != "" {
		attrs = append(attrs, attribute.String(attrDBCollectionName, c.Index))
	}

	if c.Type != "" {
		attrs = append(attrs, attribute.String(attrESType, c.Type))
	}

	if c.ScopePath != "" {
		attrs = append(attrs, attribute.String(attrESScopePath, c.ScopePath))
	}

	if c.APIName != "" {
		attrs = append(attrs, attribute.String(attrESAPI, c.APIName))
	}

	if len(c.Operands) > 0 {
		attrs = append(attrs, attribute.StringSlice(attrESOperands, c.Operands))
	}

	return attrs
}

// metricAttributes returns the low-cardinality attributes recorded with metrics.
func metricAttributes(op Operation) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 5)

	attrs = append(attrs,
		attribute.String(attrDBSystem, dbSystem),
		attribute.String(attrDBOperationName, op.Call.Name),
		attribute.String(attrESScopePath, op.Call.ScopePath),
	)

	if op.Call.Index != "" {
		attrs = append(attrs, attribute.String(attrDBCollectionName, op.Call.Index))
	}

	if t := op.ErrorType(); t != "" {
		attrs = append(attrs, attribute.String(attrErrorType, t))
	}

	return attrs
}

// baggageAttributes copies the selected baggage members from ctx.
func baggageAttributes(ctx context.Context, keys []string) []attribute.KeyValue {
	if len(keys) == 0 {
		return nil
	}

	bag := baggage.FromContext(ctx)
	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		if m := bag.Member(k); m.Key() != "" {
			attrs = append(attrs, attribute.String(k, m.Value()))
		}
	}

	return attrs
}
