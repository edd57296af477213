package events

import (
	"context"

	"github.com/tsarna/obsws/pkg/obsws"
	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

// FuncSink adapts a function to obsws.EventSink.
type FuncSink func(ctx context.Context, event *protocol.Event) error

var _ obsws.EventSink = FuncSink(nil)

func (f FuncSink) OnEvent(ctx context.Context, event *protocol.Event) error {
	return f(ctx, event)
}
