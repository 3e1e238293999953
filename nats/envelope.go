package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/esotx/elasticsearch"
	"github.com/google/uuid"
)

// DefaultSubjectPrefix is the subject prefix statements are published under.
const DefaultSubjectPrefix = "esotx.statements"

// ErrInvalidEnvelope is returned when a message does not hold a statement envelope.
var ErrInvalidEnvelope = errors.New("esotx/nats: invalid statement envelope")

// Envelope is the wire form of a captured statement.
type Envelope struct {
	ID        string          `json:"id"`
	Vendor    string          `json:"vendor"`
	Operation string          `json:"operation"`
	ScopePath string          `json:"scopePath,omitempty"`
	Index     string          `json:"index,omitempty"`
	Statement json.RawMessage `json:"statement"`
	ElapsedMS float64         `json:"elapsedMs"`
	Truncated bool            `json:"truncated,omitempty"`
	Time      time.Time       `json:"time"`
	TraceID   string          `json:"traceId,omitempty"`
}

// NewEnvelope wraps a statement in an envelope with a fresh ID.
func NewEnvelope(st elasticsearch.Statement) *Envelope {
	stmt := json.RawMessage(st.Text)
	if !json.Valid(stmt) {
		quoted, _ := json.Marshal(st.Text)
		stmt = quoted
	}

	return &Envelope{
		ID:        uuid.NewString(),
		Vendor:    st.Vendor,
		Operation: st.Operation,
		ScopePath: st.ScopePath,
		Index:     st.Index,
		Statement: stmt,
		ElapsedMS: float64(st.Elapsed) / float64(time.Millisecond),
		Truncated: st.Truncated,
		Time:      time.Now().UTC(),
	}
}

// DecodeEnvelope parses an envelope published by [StatementPublisher].
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if env.ID == "" || env.Operation == "" {
		return nil, fmt.Errorf("%w: missing id or operation", ErrInvalidEnvelope)
	}

	return &env, nil
}

// Subject returns the subject for an operation: "<prefix>.<operation>".
func Subject(prefix, operation string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if operation == "" {
		operation = "Unknown"
	}

	return prefix + "." + operation
}
