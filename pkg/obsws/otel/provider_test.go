package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/tsarna/obsws/pkg/obsws/o11y"
)

func TestProvider(t *testing.T) {
	p := NewProviderFrom(metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider(), "obsws", "test").
		WithPrefix("obsws_")
	ctx := context.Background()

	assert.Equal(t, "obsws_", p.prefix)

	assert.NotPanics(t, func() {
		p.Counter("requests_total").Add(ctx, 1, o11y.L("request_type", "GetVersion"))
		p.Histogram("request_duration_seconds").Record(ctx, 0.25)
		p.Gauge("outstanding_requests").Set(ctx, 3)

		spanCtx, span := p.StartSpan(ctx, "handshake")
		assert.NotNil(t, spanCtx)
		span.SetAttributes(o11y.L("endpoint", "localhost:4455"))
		span.SetStatus(o11y.SpanStatusError, "boom")
		span.SetStatus(o11y.SpanStatusOK, "")
		span.SetStatus(o11y.SpanStatusUnset, "")
		span.End()
	})
}

func TestGaugeTracksLastValue(t *testing.T) {
	p := NewProviderFrom(metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider(), "obsws", "test")
	g := p.Gauge("outstanding_requests").(*gauge64)
	ctx := context.Background()

	g.Set(ctx, 3, o11y.L("b", "2"), o11y.L("a", "1"))
	g.Set(ctx, 5, o11y.L("a", "1"), o11y.L("b", "2"))
	g.Set(ctx, 1)

	assert.Equal(t, 5.0, g.last["a=1,b=2"])
	assert.Equal(t, 1.0, g.last[""])
}

func TestNewProviderUsesGlobals(t *testing.T) {
	assert.NotNil(t, NewProvider("obsws", "dev"))
}
