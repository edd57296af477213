package events

import (
	"context"

	"github.com/amir-yaghoubi/mqttpattern"

	"github.com/tsarna/obsws/pkg/obsws"
	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

// FilterSink passes on events whose topic matches at least one MQTT-style
// pattern and silently drops the rest.
//
// Pattern examples:
//   - "scenes/#" - every scene event
//   - "+/InputMuteStateChanged" - one event type in any category
//   - "#" - everything
type FilterSink struct {
	wrapped  obsws.EventSink
	patterns []string
}

var _ obsws.EventSink = (*FilterSink)(nil)

// NewFilterSink creates a FilterSink. With no patterns every event passes.
func NewFilterSink(wrapped obsws.EventSink, patterns ...string) *FilterSink {
	return &FilterSink{
		wrapped:  wrapped,
		patterns: patterns,
	}
}

// Matches reports whether topic passes the filter.
func (f *FilterSink) Matches(topic string) bool {
	if len(f.patterns) == 0 {
		return true
	}
	for _, pattern := range f.patterns {
		if mqttpattern.Matches(pattern, topic) {
			return true
		}
	}
	return false
}

func (f *FilterSink) OnEvent(ctx context.Context, event *protocol.Event) error {
	if !f.Matches(Topic(event)) {
		return nil
	}
	return f.wrapped.OnEvent(ctx, event)
}
