package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

type EventType string

const (
	EventTypeData EventType = "data"
)

const QueueDepth = 100

type Event interface {
	GetType() EventType
}

// DataEvent carries an out-of-band provider payload, such as a subscription
// notification.
type DataEvent struct {
	Payload any
}

func (e DataEvent) GetType() EventType {
	return EventTypeData
}

// DataBatchEvent carries several payloads that are delivered in order while
// taking a single queue slot.
type DataBatchEvent struct {
	Payloads []any
}

func (e DataBatchEvent) GetType() EventType {
	return EventTypeData
}

type EventBus struct {
	eventQueue  chan Event
	closeChan   chan any
	subscribers *xsync.MapOf[string, func(Event)]
	mu          sync.RWMutex
	closed      bool
	started     bool
}

func NewEventBus() *EventBus {
	return &EventBus{
		eventQueue:  make(chan Event, QueueDepth),
		closeChan:   make(chan any),
		subscribers: xsync.NewMapOf[string, func(Event)](),
	}
}

// Start delivers queued events to subscribers until Stop is called.
func (eb *EventBus) Start() {
	eb.mu.Lock()
	if eb.started || eb.closed {
		eb.mu.Unlock()
		return
	}
	eb.started = true
	eb.mu.Unlock()

	go func() {
		for event := range eb.eventQueue {
			eb.subscribers.Range(func(_ string, fn func(Event)) bool {
				fn(event)
				return true
			})
		}
		close(eb.closeChan)
	}()
}

func (eb *EventBus) Stop() {
	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return
	}
	eb.closed = true
	started := eb.started
	close(eb.eventQueue)
	eb.mu.Unlock()

	if started {
		<-eb.closeChan
	}
}

// Publish queues an event without blocking. Events published to a full or
// stopped bus are dropped.
func (eb *EventBus) Publish(event Event) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return false
	}
	select {
	case eb.eventQueue <- event:
		return true
	default:
		slog.Warn("Event queue full, dropping event", "type", event.GetType())
		return false
	}
}

func (eb *EventBus) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := uuid.NewString()
	eb.subscribers.Store(id, fn)
	return func() {
		eb.subscribers.Delete(id)
	}
}
