package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/tsarna/obsws/pkg/obsws"
	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

var (
	ErrQueueFull  = errors.New("event queue is full")
	ErrSinkClosed = errors.New("event sink is closed")
)

// DefaultQueueSize is used when NewAsyncSink is given a non-positive size.
const DefaultQueueSize = 100

type queuedEvent struct {
	ctx   context.Context
	event *protocol.Event
}

// AsyncSink wraps another sink and delivers events to it from a background
// goroutine through a buffered queue, so the session's reader never waits on
// a slow consumer.
type AsyncSink struct {
	wrapped   obsws.EventSink
	logger    *zap.Logger
	queue     chan queuedEvent
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// Held for reading across the closed check and the enqueue in OnEvent,
	// so nothing is queued once Close has closed done.
	mu sync.RWMutex
}

var _ obsws.EventSink = (*AsyncSink)(nil)

// NewAsyncSink creates an AsyncSink with room for queueSize events.
//
//	async := events.NewAsyncSink(mySink, 100).Start()
//	defer async.Close()
//
// Close must be called to stop the goroutine; it delivers whatever is still
// queued before returning.
func NewAsyncSink(wrapped obsws.EventSink, queueSize int) *AsyncSink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &AsyncSink{
		wrapped: wrapped,
		logger:  zap.NewNop(),
		queue:   make(chan queuedEvent, queueSize),
		done:    make(chan struct{}),
	}
}

// WithLogger sets the logger used for errors returned by the wrapped sink.
func (a *AsyncSink) WithLogger(logger *zap.Logger) *AsyncSink {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Start begins delivering events in a background goroutine.
func (a *AsyncSink) Start() *AsyncSink {
	a.wg.Add(1)
	go a.processQueue()
	return a
}

func (a *AsyncSink) processQueue() {
	defer a.wg.Done()

	for {
		select {
		case q := <-a.queue:
			a.deliver(q)
		case <-a.done:
			a.drainQueue()
			return
		}
	}
}

func (a *AsyncSink) drainQueue() {
	for {
		select {
		case q := <-a.queue:
			a.deliver(q)
		default:
			return
		}
	}
}

func (a *AsyncSink) deliver(q queuedEvent) {
	if err := a.wrapped.OnEvent(q.ctx, q.event); err != nil {
		a.logger.Warn("Event sink failed",
			zap.String("topic", Topic(q.event)),
			zap.Error(err))
	}
}

// OnEvent queues event and returns immediately.
func (a *AsyncSink) OnEvent(ctx context.Context, event *protocol.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.IsClosed() {
		return ErrSinkClosed
	}

	select {
	case a.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events, delivers the queued ones and waits for the
// goroutine to exit.
func (a *AsyncSink) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		close(a.done)
		a.mu.Unlock()
		a.wg.Wait()
	})
	return nil
}

// QueueSize returns the number of events waiting to be delivered.
func (a *AsyncSink) QueueSize() int {
	return len(a.queue)
}

// QueueCapacity returns the maximum number of queued events.
func (a *AsyncSink) QueueCapacity() int {
	return cap(a.queue)
}

// IsClosed returns true once Close has been called.
func (a *AsyncSink) IsClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}
