package events_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeuslawyer/remix-simulator/internal/events"
)

func TestPublishDelivers(t *testing.T) {
	t.Parallel()
	bus := events.NewEventBus()
	bus.Start()
	defer bus.Stop()

	received := make(chan any, 1)
	unsubscribe := bus.Subscribe(func(event events.Event) {
		if data, ok := event.(events.DataEvent); ok {
			received <- data.Payload
		}
	})
	defer unsubscribe()

	require.True(t, bus.Publish(events.DataEvent{Payload: "hello"}))
	select {
	case payload := <-received:
		assert.Equal(t, "hello", payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()
	bus := events.NewEventBus()
	bus.Start()

	var count atomic.Int32
	unsubscribe := bus.Subscribe(func(events.Event) {
		count.Add(1)
	})
	unsubscribe()

	bus.Publish(events.DataEvent{Payload: 1})
	bus.Stop()
	assert.Equal(t, int32(0), count.Load())
}

func TestStopDrainsAndRejects(t *testing.T) {
	t.Parallel()
	bus := events.NewEventBus()
	bus.Start()

	var count atomic.Int32
	bus.Subscribe(func(events.Event) {
		count.Add(1)
	})
	for range 5 {
		bus.Publish(events.DataEvent{})
	}
	bus.Stop()
	assert.Equal(t, int32(5), count.Load())

	assert.False(t, bus.Publish(events.DataEvent{}))
	// A second stop is harmless.
	bus.Stop()
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	bus := events.NewEventBus()
	for range events.QueueDepth {
		require.True(t, bus.Publish(events.DataEvent{}))
	}
	assert.False(t, bus.Publish(events.DataEvent{}))
	bus.Stop()
}

func TestBatchTakesOneSlot(t *testing.T) {
	t.Parallel()
	bus := events.NewEventBus()

	payloads := make([]any, 3*events.QueueDepth)
	for i := range payloads {
		payloads[i] = i
	}
	// Not started yet, so only the queue holds events.
	require.True(t, bus.Publish(events.DataBatchEvent{Payloads: payloads}))
	for range events.QueueDepth - 1 {
		require.True(t, bus.Publish(events.DataEvent{Payload: "filler"}))
	}
	assert.False(t, bus.Publish(events.DataEvent{Payload: "overflow"}))

	var batch atomic.Int32
	done := make(chan struct{})
	bus.Subscribe(func(event events.Event) {
		if data, ok := event.(events.DataBatchEvent); ok {
			batch.Store(int32(len(data.Payloads)))
			close(done)
		}
	})
	bus.Start()
	defer bus.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch not delivered")
	}
	assert.Equal(t, int32(3*events.QueueDepth), batch.Load())
}
