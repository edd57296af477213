package events

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tsarna/obsws/pkg/obsws"
	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

// LoggingSink logs every event and passes it on to the wrapped sink.
// If the wrapped sink is nil, it acts as a standalone logging sink.
type LoggingSink struct {
	wrapped  obsws.EventSink
	logger   *zap.Logger
	logLevel zapcore.Level
	name     string
}

var _ obsws.EventSink = (*LoggingSink)(nil)

// NewLoggingSink creates a LoggingSink that logs at info level.
func NewLoggingSink(logger *zap.Logger, wrapped obsws.EventSink) *LoggingSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingSink{
		wrapped:  wrapped,
		logger:   logger,
		logLevel: zapcore.InfoLevel,
		name:     "LoggingSink",
	}
}

// WithLevel sets the level events are logged at.
func (l *LoggingSink) WithLevel(level zapcore.Level) *LoggingSink {
	l.logLevel = level
	return l
}

// WithName sets the name that identifies this sink in log entries.
func (l *LoggingSink) WithName(name string) *LoggingSink {
	l.name = name
	return l
}

func (l *LoggingSink) OnEvent(ctx context.Context, event *protocol.Event) error {
	l.logger.Log(l.logLevel, "OBS event",
		zap.String("sink", l.name),
		zap.String("topic", Topic(event)),
		zap.Uint32("intent", event.EventIntent),
		zap.Any("data", event.EventData),
	)

	if l.wrapped != nil {
		return l.wrapped.OnEvent(ctx, event)
	}
	return nil
}
