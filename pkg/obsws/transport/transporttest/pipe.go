// Package transporttest provides an in-memory transport for exercising the
// session without a network. Frames queued on the Peer are read by the client
// Conn in order; frames the client writes are collected on the Peer.
package transporttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tsarna/obsws/pkg/obsws/transport"
)

const queueSize = 64

type frame struct {
	data   []byte
	binary bool
}

type pipe struct {
	toClient chan frame
	toPeer   chan []byte

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error // returned by reads and writes after close
}

func (p *pipe) close(err error) {
	p.closeOnce.Do(func() {
		p.closeErr = err
		close(p.closed)
	})
}

// Conn is the client end of an in-memory pipe.
type Conn struct {
	p *pipe
}

var _ transport.Conn = (*Conn)(nil)

// Read returns the next queued frame. Like the websocket implementation, a
// cancelled context closes the connection.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	// Frames queued before a close are still delivered, as on a real socket.
	select {
	case f := <-c.p.toClient:
		return c.deliver(f)
	default:
	}

	select {
	case f := <-c.p.toClient:
		return c.deliver(f)
	case <-c.p.closed:
		return nil, c.p.closeErr
	case <-ctx.Done():
		c.p.close(transport.ErrConnClosed)
		return nil, ctx.Err()
	}
}

func (c *Conn) deliver(f frame) ([]byte, error) {
	if f.binary {
		return nil, transport.ErrNonTextFrame
	}
	return f.data, nil
}

// Write hands text to the peer.
func (c *Conn) Write(ctx context.Context, text []byte) error {
	select {
	case <-c.p.closed:
		return c.p.closeErr
	default:
	}

	buf := append([]byte(nil), text...)
	select {
	case c.p.toPeer <- buf:
		return nil
	case <-c.p.closed:
		return c.p.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the pipe.
func (c *Conn) Close() error {
	c.p.close(transport.ErrConnClosed)
	return nil
}

// Peer is the remote end of an in-memory pipe.
type Peer struct {
	p *pipe
}

// Send queues a text frame for the client.
func (p *Peer) Send(text string) {
	p.p.toClient <- frame{data: []byte(text)}
}

// SendJSON marshals v and queues it as a text frame.
func (p *Peer) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.p.toClient <- frame{data: data}
	return nil
}

// SendBinary queues a binary frame.
func (p *Peer) SendBinary(data []byte) {
	p.p.toClient <- frame{data: data, binary: true}
}

// CloseWith closes the pipe as if the server sent a close frame.
func (p *Peer) CloseWith(code int, reason string) {
	p.p.close(&transport.CloseError{Code: code, Reason: reason})
}

// Fail closes the pipe with an arbitrary error, like a reset connection.
func (p *Peer) Fail(err error) {
	p.p.close(err)
}

// Closed reports whether either side closed the pipe.
func (p *Peer) Closed() bool {
	select {
	case <-p.p.closed:
		return true
	default:
		return false
	}
}

// Next waits up to timeout for the next frame written by the client.
func (p *Peer) Next(timeout time.Duration) ([]byte, error) {
	select {
	case data := <-p.p.toPeer:
		return data, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no frame written within %s", timeout)
	}
}

// Written drains and returns every frame the client has written so far.
func (p *Peer) Written() [][]byte {
	var out [][]byte
	for {
		select {
		case data := <-p.p.toPeer:
			out = append(out, data)
		default:
			return out
		}
	}
}

// NewPipe returns both ends of a fresh in-memory connection.
func NewPipe() (*Conn, *Peer) {
	p := &pipe{
		toClient: make(chan frame, queueSize),
		toPeer:   make(chan []byte, queueSize),
		closed:   make(chan struct{}),
	}
	return &Conn{p: p}, &Peer{p: p}
}

// ErrDialRefused is the default error of a Dialer set to refuse connections.
var ErrDialRefused = errors.New("connection refused")

// Dialer hands out in-memory connections. The next connection is created up
// front so tests can queue frames on Peer before dialing.
type Dialer struct {
	mu     sync.Mutex
	conn   *Conn
	peer   *Peer
	dials  []string
	dialFn func(ctx context.Context) error
}

var _ transport.Dialer = (*Dialer)(nil)

// NewDialer creates a Dialer with one pending connection.
func NewDialer() *Dialer {
	d := &Dialer{}
	d.conn, d.peer = NewPipe()
	return d
}

// Refuse makes subsequent dials fail with err.
func (d *Dialer) Refuse(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialFn = func(context.Context) error { return err }
}

// Block makes subsequent dials wait until ctx is done.
func (d *Dialer) Block() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialFn = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
}

// Peer returns the remote end of the pending (or most recently dialed) connection.
func (d *Dialer) Peer() *Peer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peer
}

// Dials returns the URLs dialed so far.
func (d *Dialer) Dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, url)
	dialFn := d.dialFn
	d.mu.Unlock()

	if dialFn != nil {
		if err := dialFn(ctx); err != nil {
			return nil, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	conn := d.conn
	if conn == nil {
		conn, d.peer = NewPipe()
	}
	d.conn = nil
	return conn, nil
}
