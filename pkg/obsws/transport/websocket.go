package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Subprotocol is the WebSocket subprotocol obs-websocket speaks with JSON encoding.
const Subprotocol = "obswebsocket.json"

// DefaultReadLimit bounds the size of a single incoming frame. Scene lists and
// screenshots easily exceed the library default of 32KB.
const DefaultReadLimit = 16 << 20

// WebSocketDialer dials obs-websocket servers with github.com/coder/websocket.
type WebSocketDialer struct {
	logger    *zap.Logger
	headers   http.Header
	readLimit int64
}

// NewWebSocketDialer creates a dialer. A nil logger disables logging.
func NewWebSocketDialer(logger *zap.Logger) *WebSocketDialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketDialer{
		logger:    logger,
		readLimit: DefaultReadLimit,
	}
}

// WithHeader adds an HTTP header to the upgrade request.
func (d *WebSocketDialer) WithHeader(key, value string) *WebSocketDialer {
	if d.headers == nil {
		d.headers = make(http.Header)
	}
	d.headers.Add(key, value)
	return d
}

// WithReadLimit sets the maximum size of an incoming frame. Non-positive values are ignored.
func (d *WebSocketDialer) WithReadLimit(limit int64) *WebSocketDialer {
	if limit > 0 {
		d.readLimit = limit
	}
	return d
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	opts := &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
	}
	if d.headers != nil {
		opts.HTTPHeader = d.headers.Clone()
	}

	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(d.readLimit)

	if sp := conn.Subprotocol(); sp != Subprotocol {
		d.logger.Debug("Server did not select the JSON subprotocol", zap.String("subprotocol", sp))
	}

	return &wsConn{conn: conn, logger: d.logger}, nil
}

type wsConn struct {
	conn      *websocket.Conn
	logger    *zap.Logger
	closeOnce sync.Once
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, translate(err)
	}
	if typ != websocket.MessageText {
		return nil, ErrNonTextFrame
	}
	return data, nil
}

func (c *wsConn) Write(ctx context.Context, text []byte) error {
	if err := c.conn.Write(ctx, websocket.MessageText, text); err != nil {
		return translate(err)
	}
	return nil
}

// Close sends a normal close frame. Errors from a peer that already went away
// are only logged.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(websocket.StatusNormalClosure, "client disconnect"); err != nil {
			c.logger.Debug("Error closing WebSocket", zap.Error(err))
		}
	})
	return nil
}

// translate turns a close frame into a *CloseError so callers need not import
// the websocket library.
func translate(err error) error {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: int(ce.Code), Reason: ce.Reason}
	}
	return err
}
