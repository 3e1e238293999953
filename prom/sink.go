package prom

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/esotx/elasticsearch"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultNamespace = "elasticsearch"
	defaultSubsystem = "client"

	labelOperation = "operation"
	labelScopePath = "scope_path"
	labelIndex     = "index"
	labelOutcome   = "outcome"

	outcomeOK    = "ok"
	outcomeError = "error"
)

var labels = []string{labelOperation, labelScopePath, labelIndex, labelOutcome}

type options struct {
	reg         prometheus.Registerer
	namespace   string
	subsystem   string
	buckets     []float64
	constLabels prometheus.Labels
	scopePath   bool
}

// Option configures a Sink.
type Option func(*options)

// WithRegisterer sets the registry the collectors are registered on.
// Default is prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// WithNamespace overrides the metric namespace. Default is "elasticsearch".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithBuckets sets the duration histogram buckets in seconds.
func WithBuckets(buckets ...float64) Option {
	return func(o *options) {
		o.buckets = buckets
	}
}

// WithConstLabels adds constant labels to every series.
func WithConstLabels(l prometheus.Labels) Option {
	return func(o *options) {
		o.constLabels = l
	}
}

// WithScopePathLabel controls whether the scope_path label carries the scope
// path. Scope paths include document ids, so deployments with many ids should
// disable it; the label is then always empty. Default is true.
func WithScopePathLabel(enabled bool) Option {
	return func(o *options) {
		o.scopePath = enabled
	}
}

// Sink records Elasticsearch operations as Prometheus metrics.
// It implements [elasticsearch.OperationSink].
type Sink struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	scopePath  bool
}

// NewSink creates the collectors and registers them. Collectors already
// registered with an identical description are reused.
func NewSink(opts ...Option) (*Sink, error) {
	o := options{
		reg:       prometheus.DefaultRegisterer,
		namespace: defaultNamespace,
		subsystem: defaultSubsystem,
		buckets:   prometheus.DefBuckets,
		scopePath: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   o.namespace,
		Subsystem:   o.subsystem,
		Name:        "operations_total",
		Help:        "The total number of Elasticsearch operations partitioned by operation, scope and outcome",
		ConstLabels: o.constLabels,
	}, labels)

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   o.namespace,
		Subsystem:   o.subsystem,
		Name:        "operation_duration_seconds",
		Help:        "Latency distributions of Elasticsearch operations partitioned by operation, scope and outcome",
		Buckets:     o.buckets,
		ConstLabels: o.constLabels,
	}, labels)

	var err error
	if operations, err = register(o.reg, operations); err != nil {
		return nil, err
	}
	if duration, err = register(o.reg, duration); err != nil {
		return nil, err
	}

	return &Sink{operations: operations, duration: duration, scopePath: o.scopePath}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	return c, fmt.Errorf("register collector: %w", err)
}

// NotifyOperation records the operation.
func (s *Sink) NotifyOperation(_ context.Context, op elasticsearch.Operation) {
	outcome := outcomeOK
	if op.Failed() {
		outcome = outcomeError
	}

	scope := ""
	if s.scopePath {
		scope = op.Call.ScopePath
	}

	values := []string{op.Call.Name, scope, op.Call.Index, outcome}
	s.operations.WithLabelValues(values...).Inc()
	s.duration.WithLabelValues(values...).Observe(op.Elapsed.Seconds())
}

var _ elasticsearch.OperationSink = (*Sink)(nil)
