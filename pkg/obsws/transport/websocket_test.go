package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestServer runs handler on every accepted WebSocket connection.
func newTestServer(t *testing.T, handler func(ctx context.Context, c *websocket.Conn)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{Subprotocol},
		})
		if err != nil {
			return
		}
		defer c.CloseNow()
		handler(r.Context(), c)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketDialer(t *testing.T) {
	t.Run("text frames both ways", func(t *testing.T) {
		url := newTestServer(t, func(ctx context.Context, c *websocket.Conn) {
			_ = c.Write(ctx, websocket.MessageText, []byte(`{"op":0,"d":{"rpcVersion":1}}`))
			typ, data, err := c.Read(ctx)
			if err != nil || typ != websocket.MessageText {
				return
			}
			_ = c.Write(ctx, websocket.MessageText, data)
			_, _, _ = c.Read(ctx)
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, err := NewWebSocketDialer(zap.NewNop()).Dial(ctx, url)
		require.NoError(t, err)
		defer conn.Close()

		hello, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"op":0,"d":{"rpcVersion":1}}`, string(hello))

		require.NoError(t, conn.Write(ctx, []byte(`{"op":1,"d":{"rpcVersion":1}}`)))
		echoed, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"op":1,"d":{"rpcVersion":1}}`, string(echoed))
	})

	t.Run("binary frame is reported distinctly", func(t *testing.T) {
		url := newTestServer(t, func(ctx context.Context, c *websocket.Conn) {
			_ = c.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02})
			_ = c.Write(ctx, websocket.MessageText, []byte(`{}`))
			_, _, _ = c.Read(ctx)
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, err := NewWebSocketDialer(nil).Dial(ctx, url)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Read(ctx)
		assert.ErrorIs(t, err, ErrNonTextFrame)

		data, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(data))
	})

	t.Run("close frame becomes CloseError", func(t *testing.T) {
		url := newTestServer(t, func(ctx context.Context, c *websocket.Conn) {
			_ = c.Close(websocket.StatusCode(4009), "Authentication failed.")
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, err := NewWebSocketDialer(nil).Dial(ctx, url)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Read(ctx)
		require.Error(t, err)
		assert.Equal(t, 4009, CloseCode(err))
	})

	t.Run("custom headers reach the server", func(t *testing.T) {
		got := make(chan string, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got <- r.Header.Get("X-Client")
			c, err := websocket.Accept(w, r, nil)
			if err != nil {
				return
			}
			c.Close(websocket.StatusNormalClosure, "")
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, err := NewWebSocketDialer(nil).
			WithHeader("X-Client", "obsws-test").
			Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
		require.NoError(t, err)
		conn.Close()

		assert.Equal(t, "obsws-test", <-got)
	})

	t.Run("dial failure", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, err := NewWebSocketDialer(nil).Dial(ctx, "ws://127.0.0.1:1/")
		assert.Error(t, err)
	})

	t.Run("read limit option", func(t *testing.T) {
		d := NewWebSocketDialer(nil)
		assert.Equal(t, int64(DefaultReadLimit), d.readLimit)
		d.WithReadLimit(0)
		assert.Equal(t, int64(DefaultReadLimit), d.readLimit)
		d.WithReadLimit(1024)
		assert.Equal(t, int64(1024), d.readLimit)
	})
}

func TestCloseCode(t *testing.T) {
	assert.Equal(t, 4009, CloseCode(&CloseError{Code: 4009}))
	assert.Equal(t, -1, CloseCode(ErrConnClosed))
	assert.Equal(t, -1, CloseCode(nil))
}

func TestDialerFunc(t *testing.T) {
	called := false
	var d Dialer = DialerFunc(func(ctx context.Context, url string) (Conn, error) {
		called = true
		assert.Equal(t, "ws://example/", url)
		return nil, ErrConnClosed
	})

	_, err := d.Dial(context.Background(), "ws://example/")
	assert.ErrorIs(t, err, ErrConnClosed)
	assert.True(t, called)
}
