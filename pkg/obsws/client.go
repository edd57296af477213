package obsws

import (
	"context"

	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

// Client is an authenticated obs-websocket session.
type Client interface {
	Connect(ctx context.Context) error
	Close() error

	Send(ctx context.Context, requestType string, requestData protocol.Document) (string, error)
	Receive(ctx context.Context) (protocol.Envelope, error)
	Call(ctx context.Context, requestType string, requestData protocol.Document) (*protocol.RequestResponse, error)
	Reidentify(ctx context.Context, eventSubscriptions uint32) error
}

// EventSink receives events read from the server.
type EventSink interface {
	OnEvent(ctx context.Context, event *protocol.Event) error
}

// Monitor is notified of session lifecycle changes.
type Monitor interface {
	// OnConnect is called once the session is Ready.
	OnConnect(ctx context.Context, client Client)
	// OnDisconnect is called when a Ready session closes. err is nil for
	// an explicit Close.
	OnDisconnect(ctx context.Context, client Client, err error)
}
