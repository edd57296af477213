// Package otel binds the o11y interfaces to OpenTelemetry.
package otel

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tsarna/obsws/pkg/obsws/o11y"
)

// Provider implements o11y.MetricsProvider and o11y.TracingProvider.
type Provider struct {
	meter  metric.Meter
	tracer trace.Tracer
	prefix string
}

var (
	_ o11y.MetricsProvider = (*Provider)(nil)
	_ o11y.TracingProvider = (*Provider)(nil)
)

// NewProvider uses the globally registered OpenTelemetry providers.
func NewProvider(serviceName, serviceVersion string) *Provider {
	return NewProviderFrom(otel.GetMeterProvider(), otel.GetTracerProvider(), serviceName, serviceVersion)
}

// NewProviderFrom uses explicit meter and tracer providers.
func NewProviderFrom(mp metric.MeterProvider, tp trace.TracerProvider, serviceName, serviceVersion string) *Provider {
	return &Provider{
		meter:  mp.Meter(serviceName, metric.WithInstrumentationVersion(serviceVersion)),
		tracer: tp.Tracer(serviceName, trace.WithInstrumentationVersion(serviceVersion)),
	}
}

// WithPrefix prepends prefix to every instrument name, e.g. "obsws_".
func (p *Provider) WithPrefix(prefix string) *Provider {
	p.prefix = prefix
	return p
}

func (p *Provider) Counter(name string) o11y.Counter {
	counter, _ := p.meter.Int64Counter(p.prefix + name)
	return &counter64{counter: counter}
}

func (p *Provider) Histogram(name string) o11y.Histogram {
	histogram, _ := p.meter.Float64Histogram(p.prefix + name)
	return &histogram64{histogram: histogram}
}

// Gauge is backed by an UpDownCounter; Set adds the difference from the
// previous value recorded for the same label set.
func (p *Provider) Gauge(name string) o11y.Gauge {
	udc, _ := p.meter.Float64UpDownCounter(p.prefix + name)
	return &gauge64{udc: udc, last: make(map[string]float64)}
}

func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

func attrs(labels []o11y.Label) []attribute.KeyValue {
	kv := make([]attribute.KeyValue, len(labels))
	for i, l := range labels {
		kv[i] = attribute.String(l.Key, l.Value)
	}
	return kv
}

type counter64 struct {
	counter metric.Int64Counter
}

func (c *counter64) Add(ctx context.Context, value int64, labels ...o11y.Label) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs(labels)...))
}

type histogram64 struct {
	histogram metric.Float64Histogram
}

func (h *histogram64) Record(ctx context.Context, value float64, labels ...o11y.Label) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs(labels)...))
}

type gauge64 struct {
	udc  metric.Float64UpDownCounter
	mu   sync.Mutex
	last map[string]float64
}

func (g *gauge64) Set(ctx context.Context, value float64, labels ...o11y.Label) {
	key := labelKey(labels)

	g.mu.Lock()
	delta := value - g.last[key]
	g.last[key] = value
	g.mu.Unlock()

	if delta != 0 {
		g.udc.Add(ctx, delta, metric.WithAttributes(attrs(labels)...))
	}
}

func labelKey(labels []o11y.Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.Key + "=" + l.Value
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetAttributes(labels ...o11y.Label) {
	s.span.SetAttributes(attrs(labels)...)
}

func (s *otelSpan) SetStatus(code o11y.SpanStatusCode, description string) {
	switch code {
	case o11y.SpanStatusOK:
		s.span.SetStatus(codes.Ok, description)
	case o11y.SpanStatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

func (s *otelSpan) End() {
	s.span.End()
}
