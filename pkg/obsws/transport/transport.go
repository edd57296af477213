// Package transport is the boundary between the protocol layer and the raw
// duplex message channel. The session only sees whole text frames through the
// Dialer and Conn interfaces; WebSocketDialer implements them on top of
// github.com/coder/websocket.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrNonTextFrame is returned by Conn.Read when the peer sent a binary frame.
// The connection stays usable.
var ErrNonTextFrame = errors.New("unexpected non-text frame")

// ErrConnClosed is returned by operations on a connection closed locally.
var ErrConnClosed = errors.New("connection closed")

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn exchanges whole text frames. Implementations must allow one concurrent
// reader and one concurrent writer.
type Conn interface {
	// Read blocks until a frame arrives or ctx is done.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one text frame.
	Write(ctx context.Context, text []byte) error
	// Close releases the connection. Repeated calls are harmless.
	Close() error
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// CloseError reports that the peer closed the connection with a close frame.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed by peer: status %d: %s", e.Code, e.Reason)
}

// CloseCode returns the peer's close code if err carries one, -1 otherwise.
func CloseCode(err error) int {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return -1
}
