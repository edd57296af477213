// Package o11y holds the metrics and tracing abstractions used by the session.
// They keep the core free of any particular telemetry backend; package otel
// binds them to OpenTelemetry.
package o11y

import "context"

// MetricsProvider hands out named instruments.
type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// TracingProvider starts spans.
type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter is a monotonically increasing metric.
type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

// Histogram records a distribution of values.
type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Gauge holds the last value set for each label set.
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

// Span is one traced unit of work.
type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

// Label is a key-value pair attached to a measurement or span.
type Label struct {
	Key   string
	Value string
}

// L is shorthand for building a Label.
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)

// NopTracer is a TracingProvider whose spans do nothing.
type NopTracer struct{}

func (NopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) SetAttributes(...Label)           {}
func (nopSpan) SetStatus(SpanStatusCode, string) {}
func (nopSpan) End()                             {}
