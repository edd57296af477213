package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

// recordingSink is a sink for testing that tracks every event.
type recordingSink struct {
	mu           sync.Mutex
	events       []*protocol.Event
	err          error
	processDelay time.Duration
}

func (r *recordingSink) OnEvent(ctx context.Context, event *protocol.Event) error {
	if r.processDelay > 0 {
		time.Sleep(r.processDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

func event(eventType string, intent uint32) *protocol.Event {
	return &protocol.Event{EventType: eventType, EventIntent: intent}
}

func TestTopic(t *testing.T) {
	tests := []struct {
		event *protocol.Event
		want  string
	}{
		{event("ExitStarted", protocol.SubscriptionGeneral), "general/ExitStarted"},
		{event("CurrentProgramSceneChanged", protocol.SubscriptionScenes), "scenes/CurrentProgramSceneChanged"},
		{event("InputMuteStateChanged", protocol.SubscriptionInputs), "inputs/InputMuteStateChanged"},
		{event("SceneItemCreated", protocol.SubscriptionSceneItems), "sceneitems/SceneItemCreated"},
		{event("InputVolumeMeters", protocol.SubscriptionInputVolumeMeters), "inputvolumemeters/InputVolumeMeters"},
		{event("Mixed", protocol.SubscriptionScenes|protocol.SubscriptionUI), "scenes/Mixed"},
		{event("Nothing", 0), "unknown/Nothing"},
		{event("Future", 1<<30), "unknown/Future"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Topic(tt.event))
		})
	}
}

func TestSubscription(t *testing.T) {
	bit, ok := Subscription("scenes")
	assert.True(t, ok)
	assert.Equal(t, protocol.SubscriptionScenes, bit)

	bit, ok = Subscription("inputvolumemeters")
	assert.True(t, ok)
	assert.Equal(t, protocol.SubscriptionInputVolumeMeters, bit)

	bit, _ = Subscription("all")
	assert.Equal(t, protocol.SubscriptionAll, bit)

	_, ok = Subscription("unknown")
	assert.False(t, ok)
}

func TestFuncSink(t *testing.T) {
	var got string
	sink := FuncSink(func(ctx context.Context, ev *protocol.Event) error {
		got = ev.EventType
		return nil
	})

	require.NoError(t, sink.OnEvent(context.Background(), event("ExitStarted", 1)))
	assert.Equal(t, "ExitStarted", got)
}

func TestFilterSink(t *testing.T) {
	ctx := context.Background()

	t.Run("patterns", func(t *testing.T) {
		rec := &recordingSink{}
		sink := NewFilterSink(rec, "scenes/#", "+/InputMuteStateChanged")

		for _, ev := range []*protocol.Event{
			event("CurrentProgramSceneChanged", protocol.SubscriptionScenes),
			event("InputMuteStateChanged", protocol.SubscriptionInputs),
			event("InputVolumeChanged", protocol.SubscriptionInputs),
			event("ExitStarted", protocol.SubscriptionGeneral),
		} {
			require.NoError(t, sink.OnEvent(ctx, ev))
		}

		assert.Equal(t, []string{"CurrentProgramSceneChanged", "InputMuteStateChanged"}, rec.types())
	})

	t.Run("no patterns passes everything", func(t *testing.T) {
		rec := &recordingSink{}
		sink := NewFilterSink(rec)

		require.NoError(t, sink.OnEvent(ctx, event("ExitStarted", 1)))
		assert.Len(t, rec.types(), 1)
		assert.True(t, sink.Matches("anything/at/all"))
	})

	t.Run("errors from the wrapped sink pass through", func(t *testing.T) {
		rec := &recordingSink{err: errors.New("boom")}
		sink := NewFilterSink(rec, "#")

		assert.ErrorIs(t, sink.OnEvent(ctx, event("ExitStarted", 1)), rec.err)
	})
}

func TestLoggingSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &recordingSink{}
	sink := NewLoggingSink(zap.New(core), rec).
		WithLevel(zapcore.DebugLevel).
		WithName("test")

	ev := &protocol.Event{
		EventType:   "CurrentProgramSceneChanged",
		EventIntent: protocol.SubscriptionScenes,
		EventData:   protocol.Document{"sceneName": "Live"},
	}
	require.NoError(t, sink.OnEvent(context.Background(), ev))

	assert.Equal(t, []string{"CurrentProgramSceneChanged"}, rec.types())

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "test", fields["sink"])
	assert.Equal(t, "scenes/CurrentProgramSceneChanged", fields["topic"])

	t.Run("standalone", func(t *testing.T) {
		standalone := NewLoggingSink(nil, nil)
		assert.NoError(t, standalone.OnEvent(context.Background(), ev))
	})
}

func TestAsyncSink(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers in order and drains on close", func(t *testing.T) {
		rec := &recordingSink{processDelay: time.Millisecond}
		async := NewAsyncSink(rec, 10).Start()

		for _, name := range []string{"a", "b", "c"} {
			require.NoError(t, async.OnEvent(ctx, event(name, 1)))
		}
		require.NoError(t, async.Close())

		assert.Equal(t, []string{"a", "b", "c"}, rec.types())
		assert.True(t, async.IsClosed())
	})

	t.Run("queue full", func(t *testing.T) {
		rec := &recordingSink{}
		async := NewAsyncSink(rec, 1)

		require.NoError(t, async.OnEvent(ctx, event("a", 1)))
		assert.ErrorIs(t, async.OnEvent(ctx, event("b", 1)), ErrQueueFull)
		assert.Equal(t, 1, async.QueueSize())

		async.Start()
		require.NoError(t, async.Close())
		assert.Equal(t, []string{"a"}, rec.types())
	})

	t.Run("closed", func(t *testing.T) {
		async := NewAsyncSink(&recordingSink{}, 0).Start()
		assert.Equal(t, DefaultQueueSize, async.QueueCapacity())

		require.NoError(t, async.Close())
		require.NoError(t, async.Close())
		assert.ErrorIs(t, async.OnEvent(ctx, event("a", 1)), ErrSinkClosed)
	})

	t.Run("wrapped errors are logged", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		async := NewAsyncSink(&recordingSink{err: errors.New("boom")}, 1).
			WithLogger(zap.New(core)).
			Start()

		require.NoError(t, async.OnEvent(ctx, event("a", 1)))
		require.NoError(t, async.Close())

		assert.Equal(t, 1, logs.FilterMessage("Event sink failed").Len())
	})

	t.Run("every accepted event is delivered when racing close", func(t *testing.T) {
		for range 50 {
			rec := &recordingSink{}
			async := NewAsyncSink(rec, 1000).Start()

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				accepted int
			)
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range 20 {
						if async.OnEvent(ctx, event("a", 1)) == nil {
							mu.Lock()
							accepted++
							mu.Unlock()
						}
					}
				}()
			}

			require.NoError(t, async.Close())
			wg.Wait()

			assert.Len(t, rec.types(), accepted)
		}
	})

	t.Run("cancelled caller context does not reach the sink", func(t *testing.T) {
		var seen error
		async := NewAsyncSink(FuncSink(func(ctx context.Context, ev *protocol.Event) error {
			seen = ctx.Err()
			return nil
		}), 1)

		cctx, cancel := context.WithCancel(ctx)
		require.NoError(t, async.OnEvent(cctx, event("a", 1)))
		cancel()

		async.Start()
		require.NoError(t, async.Close())
		assert.NoError(t, seen)
	})
}
