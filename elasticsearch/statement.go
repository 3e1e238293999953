package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/itchyny/gojq"
	"github.com/samber/lo"
)

// additionalParameters is the statement field holding the path operands.
const additionalParameters = "additional_parameters"

// errStatementDropped is returned when a statement filter produces no output.
var errStatementDropped = errors.New("esotx/elasticsearch: statement dropped by filter")

var errTrailingData = errors.New("trailing data after JSON value")

// StatementFilter is a compiled jq program applied to captured statements.
// It receives the statement object and its first output replaces it.
// A filter producing no output drops the statement.
type StatementFilter struct {
	expr string
	code *gojq.Code
}

// NewStatementFilter compiles a jq expression, e.g. `del(.query.password)`.
func NewStatementFilter(expr string) (*StatementFilter, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse statement filter: %w", err)
	}

	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile statement filter: %w", err)
	}

	return &StatementFilter{expr: expr, code: code}, nil
}

// String returns the jq expression.
func (f *StatementFilter) String() string {
	return f.expr
}

func (f *StatementFilter) apply(ctx context.Context, v map[string]any) (any, error) {
	iter := f.code.RunWithContext(ctx, v)
	out, ok := iter.Next()
	if !ok {
		return nil, errStatementDropped
	}
	if err, isErr := out.(error); isErr {
		return nil, fmt.Errorf("run statement filter: %w", err)
	}

	return out, nil
}

// BuildStatement serializes a request into a statement: the JSON object body
// merged with the query parameters, parameters winning on conflict, plus the
// operands under "additional_parameters". A body that is not a JSON object is
// stored under "body", as an array for NDJSON and as a string otherwise.
func BuildStatement(req Request, operands []string) string {
	text, _ := json.Marshal(statementFields(req, operands, true))
	return string(text)
}

// renderStatement builds the statement text for a request, honoring the
// size limit and the filter. The bool result reports whether the body was dropped.
func renderStatement(ctx context.Context, req Request, operands []string, o *options) (string, bool, error) {
	text, err := encodeStatement(ctx, statementFields(req, operands, true), o.statementFilter)
	if err != nil {
		return "", false, err
	}
	if o.maxStatementSize <= 0 || len(text) <= o.maxStatementSize {
		return text, false, nil
	}

	fields := statementFields(req, operands, false)
	fields["truncated"] = true
	text, err = encodeStatement(ctx, fields, o.statementFilter)
	if err != nil {
		return "", false, err
	}

	return text, true, nil
}

func encodeStatement(ctx context.Context, fields map[string]any, filter *StatementFilter) (string, error) {
	var v any = fields
	if filter != nil {
		out, err := filter.apply(ctx, fields)
		if err != nil {
			return "", err
		}
		v = out
	}

	text, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode statement: %w", err)
	}

	return string(text), nil
}

// statementFields returns the statement as a jq-compatible value tree.
func statementFields(req Request, operands []string, withBody bool) map[string]any {
	var body map[string]any
	if withBody {
		body = bodyFields(req.Body)
	}

	fields := lo.Assign(body, paramFields(req.Params))
	fields[additionalParameters] = lo.Map(operands, func(s string, _ int) any { return s })

	return fields
}

func bodyFields(body []byte) map[string]any {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var obj map[string]any
	if err := decodeJSON(body, &obj); err == nil {
		return obj
	}

	if lines, ok := ndjsonLines(body); ok {
		return map[string]any{"body": lines}
	}

	return map[string]any{"body": string(body)}
}

// ndjsonLines decodes newline-delimited JSON such as a bulk body.
func ndjsonLines(body []byte) ([]any, bool) {
	var lines []any
	for line := range bytes.SplitSeq(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var v any
		if err := decodeJSON(line, &v); err != nil {
			return nil, false
		}
		lines = append(lines, v)
	}

	return lines, len(lines) > 0
}

// decodeJSON decodes exactly one JSON value from data. Numbers stay
// json.Number so large integers survive re-encoding.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}

	return nil
}

func paramFields(params url.Values) map[string]any {
	if len(params) == 0 {
		return nil
	}

	fields := make(map[string]any, len(params))
	for k, vs := range params {
		switch len(vs) {
		case 0:
			fields[k] = ""
		case 1:
			fields[k] = vs[0]
		default:
			fields[k] = lo.Map(vs, func(s string, _ int) any { return s })
		}
	}

	return fields
}
