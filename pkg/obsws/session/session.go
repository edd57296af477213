package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
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

// State is the lifecycle position of a Session.
type State int32

const (
	Disconnected State = iota
	Connected
	Authenticating
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case Authenticating:
		return "Authenticating"
	case Ready:
		return "Ready"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Session is one obs-websocket connection. It owns the transport connection
// from Connect until Close.
//
// Writes are serialized by a mutex. Reads are serialized by a single read
// token: whoever holds it reads one frame and dispatches it, delivering
// responses to the waiter registered for their request id. No goroutines
// are started; a caller of Receive or Call drives the reads.
type Session struct {
	// Configuration
	endpoint            *endpoint.Endpoint
	dialer              transport.Dialer
	logger              *zap.Logger
	dialTimeout         time.Duration
	sink                obsws.EventSink
	sign                auth.SignatureFunc
	identifyWithoutAuth bool
	metrics             *Metrics
	tracer              o11y.TracingProvider
	monitor             obsws.Monitor

	// Connection state, guarded by mu
	mu            sync.Mutex
	state         State
	connecting    bool
	conn          transport.Conn
	rpcVersion    int
	subscriptions uint32
	reidentifying int
	readyAt       time.Time
	pending       map[string]*waiter
	closeErr      error

	done      chan struct{} // closed when the session reaches Closed
	doneOnce  sync.Once
	writeMu   sync.Mutex
	readToken chan struct{}
}

var _ obsws.Client = (*Session)(nil)

// result is what a waiter receives for its request id.
type result struct {
	response *protocol.RequestResponse
	batch    *protocol.RequestBatchResponse
}

// waiter is an outstanding request. op is the response op it accepts.
type waiter struct {
	op protocol.OpCode
	ch chan result
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NegotiatedRPCVersion returns the version acknowledged in Identified, or the
// one announced in Hello when no Identify was sent. Zero before Ready.
func (s *Session) NegotiatedRPCVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rpcVersion
}

// Endpoint returns a copy of the endpoint the session connects to.
func (s *Session) Endpoint() *endpoint.Endpoint {
	ep := *s.endpoint
	return &ep
}

// Outstanding returns the number of requests still awaiting a response.
func (s *Session) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// EventSubscriptions returns the subscription mask last sent to the server.
func (s *Session) EventSubscriptions() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriptions
}

// Connect opens the transport and performs the handshake. It returns once
// the session is Ready. On any failure the session ends Closed and the
// connection is released; a Session is not reusable after that.
func (s *Session) Connect(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.state != Disconnected || s.connecting {
		s.mu.Unlock()
		return obserrors.ErrAlreadyConnected
	}
	s.connecting = true
	s.mu.Unlock()

	ctx, span := s.tracer.StartSpan(ctx, "obsws.connect")
	span.SetAttributes(o11y.L("endpoint", s.endpoint.Address()))
	start := time.Now()
	defer func() {
		s.metrics.RecordConnect(ctx, time.Since(start), err)
		if err != nil {
			span.SetStatus(o11y.SpanStatusError, err.Error())
			s.shutdown(err)
			s.logger.Warn("OBS WebSocket connect failed", zap.Error(err))
		} else {
			span.SetStatus(o11y.SpanStatusOK, "")
		}
		span.End()
	}()

	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	conn, err := s.dialer.Dial(dialCtx, s.endpoint.WebSocketURL())
	cancel()
	if err != nil {
		return &obserrors.TransportError{Op: "dial", Err: err}
	}

	s.mu.Lock()
	if s.state == Closed {
		closeErr := s.closeErr
		s.mu.Unlock()
		_ = conn.Close()
		return closeErr
	}
	s.conn = conn
	s.state = Connected
	s.connecting = false
	s.mu.Unlock()

	s.logger.Debug("OBS WebSocket transport connected")

	rpcVersion, err := s.handshake(ctx, conn)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return obserrors.ErrSessionClosed
	}
	s.state = Ready
	s.rpcVersion = rpcVersion
	s.readyAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("OBS WebSocket session ready", zap.Int("rpc_version", rpcVersion))

	if s.monitor != nil {
		s.monitor.OnConnect(ctx, s)
	}

	return nil
}

// handshake reads Hello, answers with Identify when needed and waits for
// Identified. It returns the negotiated RPC version.
func (s *Session) handshake(ctx context.Context, conn transport.Conn) (int, error) {
	text, err := conn.Read(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrNonTextFrame) {
			return 0, obserrors.NewProtocolError(obserrors.NoOp, "", "non-text frame instead of Hello")
		}
		return 0, s.readError(err)
	}

	env, err := protocol.Decode(text)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordMessageReceived(ctx, len(text), env.Op)
	if env.Op != protocol.OpHello {
		return 0, obserrors.NewProtocolError(int(env.Op), "op", "expected Hello")
	}
	hello, err := protocol.DecodeAs[*protocol.Hello](env)
	if err != nil {
		return 0, err
	}

	s.setState(Authenticating)
	s.logger.Debug("Received Hello",
		zap.String("obs_websocket_version", hello.ObsWebSocketVersion),
		zap.Bool("authentication", hello.RequiresAuth()))

	if !hello.RequiresAuth() && !s.identifyWithoutAuth {
		return hello.RPCVersion, nil
	}

	rpcVersion, err := hello.NegotiableRPCVersion()
	if err != nil {
		return 0, err
	}

	identify := &protocol.Identify{
		RPCVersion:         rpcVersion,
		EventSubscriptions: s.EventSubscriptions(),
	}
	if hello.RequiresAuth() {
		if !s.endpoint.HasPassword() {
			s.logger.Warn("Server requires authentication but no password was given")
		}
		identify.Authentication, err = s.sign(s.endpoint.Password, hello.Authentication.Challenge, hello.Authentication.Salt)
		if err != nil {
			return 0, err
		}
	}

	env, err = protocol.NewEnvelope(identify)
	if err != nil {
		return 0, err
	}
	if err := s.writeTo(ctx, conn, env); err != nil {
		return 0, err
	}

	text, err = conn.Read(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrNonTextFrame) {
			return 0, &obserrors.AuthenticationError{
				Op:     obserrors.NoOp,
				Reason: "non-text frame instead of Identified",
				Err:    obserrors.NewProtocolError(obserrors.NoOp, "", "non-text frame"),
			}
		}
		if code := transport.CloseCode(err); code >= 0 {
			var ce *transport.CloseError
			reason := err.Error()
			if errors.As(err, &ce) {
				reason = ce.Reason
			}
			return 0, &obserrors.AuthenticationError{Op: obserrors.NoOp, CloseCode: code, Reason: reason}
		}
		return 0, s.readError(err)
	}

	env, err = protocol.Decode(text)
	if err != nil {
		return 0, &obserrors.AuthenticationError{Op: obserrors.NoOp, Reason: err.Error(), Err: err}
	}
	s.metrics.RecordMessageReceived(ctx, len(text), env.Op)
	if env.Op != protocol.OpIdentified {
		return 0, &obserrors.AuthenticationError{Op: int(env.Op), Reason: "expected Identified"}
	}
	identified, err := protocol.DecodeAs[*protocol.Identified](env)
	if err != nil {
		return 0, &obserrors.AuthenticationError{Op: int(env.Op), Reason: err.Error(), Err: err}
	}

	return identified.NegotiatedRPCVersion, nil
}

// Send writes a Request and returns its request id. The id is registered as
// outstanding before the frame is written, so the response is matched by
// whichever caller reads it.
func (s *Session) Send(ctx context.Context, requestType string, requestData protocol.Document) (string, error) {
	id, _, err := s.sendRequest(ctx, requestType, requestData)
	return id, err
}

// SendBatch writes a RequestBatch and returns its request id.
func (s *Session) SendBatch(ctx context.Context, requests []protocol.BatchRequest, haltOnFailure bool) (string, error) {
	id, _, err := s.sendBatch(ctx, requests, haltOnFailure)
	return id, err
}

func (s *Session) sendRequest(ctx context.Context, requestType string, requestData protocol.Document) (string, chan result, error) {
	env, id, err := protocol.BuildMessage(protocol.OpRequest, requestType, requestData)
	if err != nil {
		return "", nil, err
	}
	ch, err := s.send(ctx, id, protocol.OpRequestResponse, env)
	return id, ch, err
}

func (s *Session) sendBatch(ctx context.Context, requests []protocol.BatchRequest, haltOnFailure bool) (string, chan result, error) {
	batch := protocol.NewRequestBatch(requests, haltOnFailure)
	env, err := protocol.NewEnvelope(batch)
	if err != nil {
		return "", nil, err
	}
	ch, err := s.send(ctx, batch.RequestID, protocol.OpRequestBatchResponse, env)
	return batch.RequestID, ch, err
}

func (s *Session) send(ctx context.Context, id string, responseOp protocol.OpCode, env protocol.Envelope) (chan result, error) {
	ch, err := s.register(id, responseOp)
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, env); err != nil {
		s.forget(id)
		return nil, err
	}
	return ch, nil
}

// Call sends a Request and waits for its response. While waiting it takes
// turns reading frames with other callers; events read on the way are
// delivered to the sink.
//
// A response with a failed status is returned without error; use
// RequestResponse.Err to check it. If ctx ends while another caller is
// reading, the request stays outstanding and a later response is still
// matched by Receive.
func (s *Session) Call(ctx context.Context, requestType string, requestData protocol.Document) (resp *protocol.RequestResponse, err error) {
	ctx, span := s.tracer.StartSpan(ctx, "obsws.call")
	span.SetAttributes(o11y.L("request_type", requestType))
	done := s.metrics.RecordRequest(ctx, requestType)
	defer func() {
		done(resp, err)
		switch {
		case err != nil:
			span.SetStatus(o11y.SpanStatusError, err.Error())
		case resp.Err() != nil:
			span.SetStatus(o11y.SpanStatusError, resp.Err().Error())
		default:
			span.SetStatus(o11y.SpanStatusOK, "")
		}
		span.End()
	}()

	id, ch, err := s.sendRequest(ctx, requestType, requestData)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(o11y.L("request_id", id))

	r, err := s.await(ctx, ch)
	if err != nil {
		return nil, err
	}
	return r.response, nil
}

// CallBatch sends a RequestBatch and waits for its response.
func (s *Session) CallBatch(ctx context.Context, requests []protocol.BatchRequest, haltOnFailure bool) (*protocol.RequestBatchResponse, error) {
	_, ch, err := s.sendBatch(ctx, requests, haltOnFailure)
	if err != nil {
		return nil, err
	}
	r, err := s.await(ctx, ch)
	if err != nil {
		return nil, err
	}
	return r.batch, nil
}

// await waits for ch to be filled, reading frames itself whenever the read
// token is free.
func (s *Session) await(ctx context.Context, ch chan result) (result, error) {
	for {
		select {
		case r := <-ch:
			return r, nil
		default:
		}

		select {
		case r := <-ch:
			return r, nil
		case s.readToken <- struct{}{}:
			// Another reader may have delivered ours just before releasing.
			select {
			case r := <-ch:
				<-s.readToken
				return r, nil
			default:
			}

			_, err := s.receive(ctx)
			<-s.readToken

			select {
			case r := <-ch:
				return r, nil
			default:
			}
			if err != nil {
				if s.State() != Ready {
					return result{}, err
				}
				s.logger.Debug("Ignoring frame while awaiting response", zap.Error(err))
			}
		case <-s.done:
			select {
			case r := <-ch:
				return r, nil
			default:
			}
			return result{}, s.closedError()
		case <-ctx.Done():
			return result{}, ctx.Err()
		}
	}
}

// Receive reads and dispatches one frame.
//
// Events go to the sink and are returned. Responses are matched to their
// outstanding request and returned; an unmatched response is a protocol
// violation. Protocol violations and malformed frames fail only this call
// and leave the session Ready. A failed read closes the session, and so does
// cancelling ctx while the read is in progress.
func (s *Session) Receive(ctx context.Context) (protocol.Envelope, error) {
	select {
	case s.readToken <- struct{}{}:
	case <-s.done:
		return protocol.Envelope{}, obserrors.ErrNotReady
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
	defer func() { <-s.readToken }()

	return s.receive(ctx)
}

// receive must be called with the read token held.
func (s *Session) receive(ctx context.Context) (protocol.Envelope, error) {
	conn, err := s.readyConn()
	if err != nil {
		return protocol.Envelope{}, err
	}

	text, err := conn.Read(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrNonTextFrame) {
			perr := obserrors.NewProtocolError(obserrors.NoOp, "", "non-text frame")
			s.metrics.RecordMessageError(ctx, perr)
			return protocol.Envelope{}, perr
		}
		s.shutdown(s.readError(err))
		return protocol.Envelope{}, s.closedError()
	}

	env, err := protocol.Decode(text)
	if err != nil {
		s.metrics.RecordMessageError(ctx, err)
		return env, err
	}
	s.metrics.RecordMessageReceived(ctx, len(text), env.Op)

	if err := s.dispatch(ctx, env); err != nil {
		s.metrics.RecordMessageError(ctx, err)
		return env, err
	}
	return env, nil
}

func (s *Session) dispatch(ctx context.Context, env protocol.Envelope) error {
	switch env.Op {
	case protocol.OpEvent:
		ev, err := protocol.DecodeAs[*protocol.Event](env)
		if err != nil {
			return err
		}
		s.metrics.RecordEvent(ctx, ev.EventType)
		if s.sink == nil {
			return nil
		}
		if err := s.sink.OnEvent(ctx, ev); err != nil {
			return fmt.Errorf("event sink failed for %s: %w", ev.EventType, err)
		}
		return nil

	case protocol.OpRequestResponse:
		resp, err := protocol.DecodeAs[*protocol.RequestResponse](env)
		if err != nil {
			return err
		}
		return s.deliver(env.Op, resp.RequestID, result{response: resp})

	case protocol.OpRequestBatchResponse:
		resp, err := protocol.DecodeAs[*protocol.RequestBatchResponse](env)
		if err != nil {
			return err
		}
		return s.deliver(env.Op, resp.RequestID, result{batch: resp})

	case protocol.OpIdentified:
		identified, err := protocol.DecodeAs[*protocol.Identified](env)
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.reidentifying == 0 {
			return obserrors.NewProtocolError(int(env.Op), "op", "Identified without a pending Reidentify")
		}
		s.reidentifying--
		s.rpcVersion = identified.NegotiatedRPCVersion
		return nil

	default:
		return obserrors.NewProtocolError(int(env.Op), "op", fmt.Sprintf("%s is not expected from the server", env.Op))
	}
}

// deliver hands a response to the waiter registered for id. A response of
// the wrong kind leaves the request outstanding.
func (s *Session) deliver(op protocol.OpCode, id string, r result) error {
	s.mu.Lock()
	w, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return obserrors.NewProtocolError(int(op), "requestId", fmt.Sprintf("no outstanding request with id %q", id))
	}
	if w.op != op {
		s.mu.Unlock()
		return obserrors.NewProtocolError(int(op), "requestId",
			fmt.Sprintf("response type does not match request: want %s", w.op))
	}
	delete(s.pending, id)
	outstanding := len(s.pending)
	s.mu.Unlock()

	s.metrics.RecordOutstanding(context.Background(), outstanding)
	w.ch <- r
	return nil
}

// Reidentify changes the event subscriptions of a Ready session. The
// server's Identified acknowledgement is consumed by the next read.
func (s *Session) Reidentify(ctx context.Context, eventSubscriptions uint32) error {
	env, err := protocol.NewEnvelope(&protocol.Reidentify{EventSubscriptions: eventSubscriptions})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return obserrors.ErrNotReady
	}
	s.reidentifying++
	s.subscriptions = eventSubscriptions
	s.mu.Unlock()

	if err := s.write(ctx, env); err != nil {
		return err
	}
	s.logger.Debug("Sent Reidentify", zap.Uint32("event_subscriptions", eventSubscriptions))
	return nil
}

// Close moves the session to Closed and releases the connection.
// Waiting callers fail with ErrSessionClosed. Closing twice is a no-op.
func (s *Session) Close() error {
	s.shutdown(nil)
	return nil
}

// shutdown moves the session to Closed. cause is what waiting callers see;
// nil means an explicit Close.
func (s *Session) shutdown(cause error) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	wasReady := s.state == Ready
	readyAt := s.readyAt
	conn := s.conn
	s.state = Closed
	s.connecting = false
	s.conn = nil
	s.pending = make(map[string]*waiter)
	if cause == nil {
		s.closeErr = obserrors.ErrSessionClosed
	} else {
		s.closeErr = cause
	}
	s.doneOnce.Do(func() { close(s.done) })
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	ctx := context.Background()
	s.metrics.RecordOutstanding(ctx, 0)

	if !wasReady {
		return
	}

	s.metrics.RecordSessionEnd(ctx, time.Since(readyAt))
	switch {
	case cause == nil:
		s.logger.Info("OBS WebSocket session closed")
	case errors.Is(cause, context.Canceled):
		s.logger.Info("OBS WebSocket session closed", zap.String("reason", "read cancelled"))
	default:
		s.logger.Warn("OBS WebSocket session failed", zap.Error(cause))
	}
	if s.monitor != nil {
		s.monitor.OnDisconnect(ctx, s, cause)
	}
}

// closedError returns why the session closed: ErrSessionClosed after Close,
// otherwise the failure that closed it.
func (s *Session) closedError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Closed {
		s.state = state
	}
}

func (s *Session) readyConn() (transport.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready || s.conn == nil {
		return nil, obserrors.ErrNotReady
	}
	return s.conn, nil
}

func (s *Session) register(id string, responseOp protocol.OpCode) (chan result, error) {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return nil, obserrors.ErrNotReady
	}
	ch := make(chan result, 1)
	s.pending[id] = &waiter{op: responseOp, ch: ch}
	outstanding := len(s.pending)
	s.mu.Unlock()

	s.metrics.RecordOutstanding(context.Background(), outstanding)
	return ch, nil
}

func (s *Session) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// write sends env on the Ready connection.
func (s *Session) write(ctx context.Context, env protocol.Envelope) error {
	conn, err := s.readyConn()
	if err != nil {
		return err
	}
	return s.writeTo(ctx, conn, env)
}

func (s *Session) writeTo(ctx context.Context, conn transport.Conn, env protocol.Envelope) error {
	text, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	err = conn.Write(ctx, text)
	s.writeMu.Unlock()

	if err != nil {
		s.shutdown(&obserrors.TransportError{Op: "write", Err: err})
		return s.closedError()
	}

	s.metrics.RecordMessageSent(ctx, len(text), env.Op)
	return nil
}

func (s *Session) readError(err error) error {
	return &obserrors.TransportError{Op: "read", Err: err}
}

// errorType names err for metric labels.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, obserrors.ErrInvalidURI):
		return "invalid_uri"
	case errors.Is(err, obserrors.ErrMalformedMessage):
		return "malformed_message"
	case errors.Is(err, obserrors.ErrInvalidEncoding):
		return "invalid_encoding"
	case errors.Is(err, obserrors.ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, obserrors.ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, obserrors.ErrTransport):
		return "transport"
	case errors.Is(err, obserrors.ErrSessionClosed):
		return "session_closed"
	default:
		return "other"
	}
}
