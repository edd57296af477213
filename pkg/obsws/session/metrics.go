package session

import (
	"context"
	"strconv"
	"time"

	"github.com/tsarna/obsws/pkg/obsws/o11y"
	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

// Metrics holds the instruments recorded by a session. A nil *Metrics
// records nothing.
type Metrics struct {
	// Connection metrics
	connects          o11y.Counter   // Connect attempts by result
	handshakeDuration o11y.Histogram // Dial to Ready
	sessionDuration   o11y.Histogram // Ready to Closed
	outstanding       o11y.Gauge     // Requests awaiting a response

	// Message metrics
	messagesReceived o11y.Counter   // Frames read, by op
	messagesSent     o11y.Counter   // Frames written, by op
	messageErrors    o11y.Counter   // Frames rejected, by error type
	messageSize      o11y.Histogram // Frame size in bytes, by direction

	// Request metrics
	requestsTotal   o11y.Counter   // Calls by request type
	requestDuration o11y.Histogram // Call round trip
	requestErrors   o11y.Counter   // Failed calls by request type and status code

	events o11y.Counter // Events delivered, by event type
}

// NewMetrics creates the session instruments from provider. It returns nil
// when provider is nil.
func NewMetrics(provider o11y.MetricsProvider) *Metrics {
	if provider == nil {
		return nil
	}

	return &Metrics{
		connects:          provider.Counter("obsws_connects_total"),
		handshakeDuration: provider.Histogram("obsws_handshake_duration_seconds"),
		sessionDuration:   provider.Histogram("obsws_session_duration_seconds"),
		outstanding:       provider.Gauge("obsws_outstanding_requests"),

		messagesReceived: provider.Counter("obsws_messages_received_total"),
		messagesSent:     provider.Counter("obsws_messages_sent_total"),
		messageErrors:    provider.Counter("obsws_message_errors_total"),
		messageSize:      provider.Histogram("obsws_message_size_bytes"),

		requestsTotal:   provider.Counter("obsws_requests_total"),
		requestDuration: provider.Histogram("obsws_request_duration_seconds"),
		requestErrors:   provider.Counter("obsws_request_errors_total"),

		events: provider.Counter("obsws_events_total"),
	}
}

// RecordConnect records the outcome of a Connect call.
func (m *Metrics) RecordConnect(ctx context.Context, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ready"
	if err != nil {
		result = errorType(err)
	}
	m.connects.Add(ctx, 1, o11y.L("result", result))
	if err == nil {
		m.handshakeDuration.Record(ctx, duration.Seconds())
	}
}

// RecordSessionEnd records how long a session stayed Ready.
func (m *Metrics) RecordSessionEnd(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.sessionDuration.Record(ctx, duration.Seconds())
}

// RecordOutstanding updates the number of requests awaiting a response.
func (m *Metrics) RecordOutstanding(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.outstanding.Set(ctx, float64(count))
}

// RecordMessageReceived records a frame read from the server.
func (m *Metrics) RecordMessageReceived(ctx context.Context, sizeBytes int, op protocol.OpCode) {
	if m == nil {
		return
	}
	m.messagesReceived.Add(ctx, 1, o11y.L("op", op.String()))
	m.messageSize.Record(ctx, float64(sizeBytes), o11y.L("direction", "received"))
}

// RecordMessageSent records a frame written to the server.
func (m *Metrics) RecordMessageSent(ctx context.Context, sizeBytes int, op protocol.OpCode) {
	if m == nil {
		return
	}
	m.messagesSent.Add(ctx, 1, o11y.L("op", op.String()))
	m.messageSize.Record(ctx, float64(sizeBytes), o11y.L("direction", "sent"))
}

// RecordMessageError records a frame that could not be accepted.
func (m *Metrics) RecordMessageError(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.messageErrors.Add(ctx, 1, o11y.L("error_type", errorType(err)))
}

// RecordEvent records an event handed to the sink.
func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.events.Add(ctx, 1, o11y.L("event_type", eventType))
}

// RecordRequest records the start of a Call and returns a function that
// records its completion.
//
//	done := metrics.RecordRequest(ctx, "GetVersion")
//	defer func() { done(resp, err) }()
func (m *Metrics) RecordRequest(ctx context.Context, requestType string) func(*protocol.RequestResponse, error) {
	if m == nil {
		return func(*protocol.RequestResponse, error) {}
	}

	start := time.Now()
	m.requestsTotal.Add(ctx, 1, o11y.L("request_type", requestType))

	return func(resp *protocol.RequestResponse, err error) {
		m.requestDuration.Record(ctx, time.Since(start).Seconds(), o11y.L("request_type", requestType))

		switch {
		case err != nil:
			m.requestErrors.Add(ctx, 1, o11y.L("request_type", requestType), o11y.L("code", errorType(err)))
		case resp != nil && !resp.RequestStatus.Result:
			m.requestErrors.Add(ctx, 1, o11y.L("request_type", requestType), o11y.L("code", strconv.Itoa(resp.RequestStatus.Code)))
		}
	}
}
