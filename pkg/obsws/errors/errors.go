package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrInvalidURI indicates the connection URI could not be used.
	ErrInvalidURI = errors.New("invalid obsws URI")

	// ErrMalformedMessage indicates a frame was not a well-formed message document.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrInvalidEncoding indicates a value that should be base64 was not.
	ErrInvalidEncoding = errors.New("invalid base64 encoding")

	// ErrProtocolViolation indicates the remote sent something the protocol does not allow here.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrAuthenticationFailed indicates the handshake did not end in Identified.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNotReady indicates an operation that needs a Ready session.
	ErrNotReady = errors.New("session not ready")

	// ErrAlreadyConnected indicates Connect was called on a session that is not Disconnected.
	ErrAlreadyConnected = errors.New("session already connected")

	// ErrTransport indicates a failure of the underlying connection.
	ErrTransport = errors.New("transport error")

	// ErrSessionClosed indicates the session was closed while the operation was pending.
	ErrSessionClosed = errors.New("session closed")
)

// NoOp marks a ProtocolError or AuthenticationError that is not tied to a
// received operation code.
const NoOp = -1

// ProtocolError describes a ProtocolViolation with the received operation code
// and, where known, the offending field.
type ProtocolError struct {
	Op     int
	Field  string
	Reason string
}

func (e *ProtocolError) Error() string {
	msg := ErrProtocolViolation.Error()
	if e.Op != NoOp {
		msg = fmt.Sprintf("%s (op %d)", msg, e.Op)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: field %q", msg, e.Field)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	return msg
}

// Is reports ProtocolError as an ErrProtocolViolation.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolViolation
}

// NewProtocolError builds a ProtocolError for the given op code.
func NewProtocolError(op int, field, reason string) *ProtocolError {
	return &ProtocolError{Op: op, Field: field, Reason: reason}
}

// TransportError wraps a failure reported by the transport adapter.
type TransportError struct {
	Op  string // "dial", "read", "write" or "close"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport.Error(), e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports TransportError as an ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// AuthenticationError carries what the server answered instead of Identified.
type AuthenticationError struct {
	Op        int // received op code, NoOp when the server closed the connection
	CloseCode int // websocket close code, 0 when not closed
	Reason    string
	Err       error // underlying decode or protocol failure, if any
}

func (e *AuthenticationError) Error() string {
	switch {
	case e.CloseCode != 0:
		return fmt.Sprintf("%s: connection closed with code %d: %s", ErrAuthenticationFailed.Error(), e.CloseCode, e.Reason)
	case e.Op != NoOp:
		return fmt.Sprintf("%s: unexpected op %d: %s", ErrAuthenticationFailed.Error(), e.Op, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", ErrAuthenticationFailed.Error(), e.Reason)
	}
}

// Is reports AuthenticationError as an ErrAuthenticationFailed.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
