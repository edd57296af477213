package session

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tsarna/obsws/pkg/obsws"
	"github.com/tsarna/obsws/pkg/obsws/auth"
	"github.com/tsarna/obsws/pkg/obsws/endpoint"
	obserrors "github.com/tsarna/obsws/pkg/obsws/errors"
	"github.com/tsarna/obsws/pkg/obsws/o11y"
	"github.com/tsarna/obsws/pkg/obsws/protocol"
	"github.com/tsarna/obsws/pkg/obsws/transport"
)

// DefaultDialTimeout bounds how long Connect waits for the transport to open.
const DefaultDialTimeout = 30 * time.Second

// SessionBuilder provides a fluent interface for building sessions.
type SessionBuilder struct {
	uri                 string
	endpoint            *endpoint.Endpoint
	dialer              transport.Dialer
	logger              *zap.Logger
	dialTimeout         time.Duration
	sink                obsws.EventSink
	subscriptions       uint32
	sign                auth.SignatureFunc
	identifyWithoutAuth bool
	metrics             o11y.MetricsProvider
	tracer              o11y.TracingProvider
	monitor             obsws.Monitor
}

// NewSession creates a new session builder.
func NewSession() *SessionBuilder {
	return &SessionBuilder{
		logger:        zap.NewNop(),
		dialTimeout:   DefaultDialTimeout,
		subscriptions: protocol.DefaultSubscriptions,
		sign:          auth.ComputeSignature,
	}
}

// WithURI sets the obsws:// URI to connect to. It is parsed by Build.
func (b *SessionBuilder) WithURI(uri string) *SessionBuilder {
	b.uri = uri
	return b
}

// WithEndpoint sets an already parsed endpoint, taking precedence over WithURI.
func (b *SessionBuilder) WithEndpoint(ep *endpoint.Endpoint) *SessionBuilder {
	b.endpoint = ep
	return b
}

// WithDialer replaces the WebSocket dialer.
func (b *SessionBuilder) WithDialer(dialer transport.Dialer) *SessionBuilder {
	b.dialer = dialer
	return b
}

// WithLogger sets the logger for the session.
func (b *SessionBuilder) WithLogger(logger *zap.Logger) *SessionBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout sets the timeout for opening the transport.
func (b *SessionBuilder) WithDialTimeout(timeout time.Duration) *SessionBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithEventSink sets where received events are delivered. Without a sink
// events are only returned from Receive.
func (b *SessionBuilder) WithEventSink(sink obsws.EventSink) *SessionBuilder {
	b.sink = sink
	return b
}

// WithEventSubscriptions sets the subscription mask sent in Identify.
// Default is protocol.DefaultSubscriptions.
func (b *SessionBuilder) WithEventSubscriptions(mask uint32) *SessionBuilder {
	b.subscriptions = mask
	return b
}

// WithSignatureFunc selects how the authentication string is derived.
// Default is auth.ComputeSignature.
func (b *SessionBuilder) WithSignatureFunc(sign auth.SignatureFunc) *SessionBuilder {
	if sign != nil {
		b.sign = sign
	}
	return b
}

// WithIdentifyWithoutAuth makes Connect send Identify and wait for Identified
// even when Hello announces no authentication. Otherwise such a session goes
// straight to Ready.
func (b *SessionBuilder) WithIdentifyWithoutAuth(identify bool) *SessionBuilder {
	b.identifyWithoutAuth = identify
	return b
}

// WithMetrics enables session metrics.
func (b *SessionBuilder) WithMetrics(provider o11y.MetricsProvider) *SessionBuilder {
	b.metrics = provider
	return b
}

// WithTracing enables spans around Connect and Call.
func (b *SessionBuilder) WithTracing(provider o11y.TracingProvider) *SessionBuilder {
	b.tracer = provider
	return b
}

// WithMonitor sets an optional monitor for connect and disconnect events.
func (b *SessionBuilder) WithMonitor(monitor obsws.Monitor) *SessionBuilder {
	b.monitor = monitor
	return b
}

// Build validates the configuration and returns a Disconnected session.
// An unusable URI fails here, before any transport is touched.
func (b *SessionBuilder) Build() (*Session, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	ep := b.endpoint
	if ep == nil {
		var err error
		ep, err = endpoint.Parse(b.uri)
		if err != nil {
			return nil, err
		}
	} else {
		copied := *ep
		ep = &copied
	}

	dialer := b.dialer
	if dialer == nil {
		dialer = transport.NewWebSocketDialer(b.logger)
	}

	tracer := b.tracer
	if tracer == nil {
		tracer = o11y.NopTracer{}
	}

	s := &Session{
		endpoint:            ep,
		dialer:              dialer,
		logger:              b.logger.With(zap.String("endpoint", ep.String())),
		dialTimeout:         b.dialTimeout,
		sink:                b.sink,
		subscriptions:       b.subscriptions,
		sign:                b.sign,
		identifyWithoutAuth: b.identifyWithoutAuth,
		metrics:             NewMetrics(b.metrics),
		tracer:              tracer,
		monitor:             b.monitor,
		pending:             make(map[string]*waiter),
		done:                make(chan struct{}),
		readToken:           make(chan struct{}, 1),
	}

	return s, nil
}

// IsValid checks that all required configuration is present.
func (b *SessionBuilder) IsValid() error {
	if b.uri == "" && b.endpoint == nil {
		return fmt.Errorf("%w: URI or endpoint is required", obserrors.ErrInvalidURI)
	}

	// Logger is optional - we provide a default nop logger
	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	if b.dialTimeout <= 0 {
		b.dialTimeout = DefaultDialTimeout
	}

	if b.sign == nil {
		b.sign = auth.ComputeSignature
	}

	return nil
}
