package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	obserrors "github.com/tsarna/obsws/pkg/obsws/errors"
	"github.com/tsarna/obsws/pkg/obsws/o11y"
	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

// fakeProvider records every measurement by instrument name.
type fakeProvider struct {
	mu       sync.Mutex
	counts   map[string]int64
	records  map[string][]float64
	gauges   map[string]float64
	labelSet map[string][]o11y.Label
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		counts:   make(map[string]int64),
		records:  make(map[string][]float64),
		gauges:   make(map[string]float64),
		labelSet: make(map[string][]o11y.Label),
	}
}

func (p *fakeProvider) Counter(name string) o11y.Counter     { return &fakeInstrument{p: p, name: name} }
func (p *fakeProvider) Histogram(name string) o11y.Histogram { return &fakeInstrument{p: p, name: name} }
func (p *fakeProvider) Gauge(name string) o11y.Gauge         { return &fakeInstrument{p: p, name: name} }

func (p *fakeProvider) count(name string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[name]
}

func (p *fakeProvider) labels(name string) []o11y.Label {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.labelSet[name]
}

func (p *fakeProvider) recorded(name string) []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.records[name]
}

type fakeInstrument struct {
	p    *fakeProvider
	name string
}

func (f *fakeInstrument) Add(ctx context.Context, value int64, labels ...o11y.Label) {
	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	f.p.counts[f.name] += value
	f.p.labelSet[f.name] = append(f.p.labelSet[f.name], labels...)
}

func (f *fakeInstrument) Record(ctx context.Context, value float64, labels ...o11y.Label) {
	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	f.p.records[f.name] = append(f.p.records[f.name], value)
}

func (f *fakeInstrument) Set(ctx context.Context, value float64, labels ...o11y.Label) {
	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	f.p.gauges[f.name] = value
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	assert.Nil(t, NewMetrics(nil))
	assert.NotPanics(t, func() {
		m.RecordConnect(ctx, 0, nil)
		m.RecordSessionEnd(ctx, 0)
		m.RecordOutstanding(ctx, 1)
		m.RecordMessageReceived(ctx, 10, protocol.OpEvent)
		m.RecordMessageSent(ctx, 10, protocol.OpRequest)
		m.RecordMessageError(ctx, obserrors.ErrMalformedMessage)
		m.RecordEvent(ctx, "ExitStarted")
		m.RecordRequest(ctx, "GetVersion")(nil, nil)
	})
}

func TestSessionMetrics(t *testing.T) {
	provider := newFakeProvider()
	s, peer := readySession(t, func(b *SessionBuilder) { b.WithMetrics(provider) })
	ctx := context.Background()

	assert.Equal(t, int64(1), provider.count("obsws_connects_total"))
	assert.Contains(t, provider.labels("obsws_connects_total"), o11y.L("result", "ready"))
	assert.Len(t, provider.recorded("obsws_handshake_duration_seconds"), 1)
	assert.Equal(t, int64(1), provider.count("obsws_messages_received_total"))

	var g errgroup.Group
	g.Go(func() error { return answer(peer) })
	_, err := s.Call(ctx, "GetVersion", nil)
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), provider.count("obsws_requests_total"))
	assert.Equal(t, int64(1), provider.count("obsws_messages_sent_total"))
	assert.Len(t, provider.recorded("obsws_request_duration_seconds"), 1)
	assert.Zero(t, provider.count("obsws_request_errors_total"))

	peer.Send(`{"op":5,"d":{"eventType":"ExitStarted","eventIntent":1}}`)
	_, err = s.Receive(ctx)
	require.NoError(t, err)
	assert.Contains(t, provider.labels("obsws_events_total"), o11y.L("event_type", "ExitStarted"))

	peer.Send(`{"op":`)
	_, err = s.Receive(ctx)
	require.Error(t, err)
	assert.Contains(t, provider.labels("obsws_message_errors_total"), o11y.L("error_type", "malformed_message"))

	require.NoError(t, s.Close())
	assert.Len(t, provider.recorded("obsws_session_duration_seconds"), 1)
}

func TestConnectFailureMetrics(t *testing.T) {
	provider := newFakeProvider()
	s, dialer := newTestSession(t, func(b *SessionBuilder) { b.WithMetrics(provider) })
	dialer.Refuse(errors.New("refused"))

	require.Error(t, s.Connect(context.Background()))

	assert.Contains(t, provider.labels("obsws_connects_total"), o11y.L("result", "transport"))
	assert.Empty(t, provider.recorded("obsws_handshake_duration_seconds"))
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.Canceled, "canceled"},
		{&obserrors.TransportError{Op: "read", Err: context.DeadlineExceeded}, "canceled"},
		{obserrors.ErrInvalidURI, "invalid_uri"},
		{obserrors.NewProtocolError(7, "requestId", "unmatched"), "protocol_violation"},
		{&obserrors.AuthenticationError{Op: obserrors.NoOp, CloseCode: 4009}, "authentication_failed"},
		{&obserrors.TransportError{Op: "write", Err: errors.New("reset")}, "transport"},
		{obserrors.ErrSessionClosed, "session_closed"},
		{errors.New("other"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, errorType(tt.err))
		})
	}
}
