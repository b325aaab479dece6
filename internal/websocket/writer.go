package websocket

import (
	"sync"

	"github.com/google/uuid"
)

type Message struct {
	Type int
	Data []byte
}

// Writer queues frames for a single connection.
type Writer interface {
	ID() string
	// WriteMessage blocks until msg is queued or the connection is closed.
	WriteMessage(msg Message) bool
	// TryWriteMessage queues msg only if there is room.
	TryWriteMessage(msg Message) bool
	Close()
}

type wsWriter struct {
	id        string
	writer    chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func newWriter(buffer int) *wsWriter {
	return &wsWriter{
		id:     uuid.NewString(),
		writer: make(chan Message, buffer),
		done:   make(chan struct{}),
	}
}

func (w *wsWriter) ID() string {
	return w.id
}

func (w *wsWriter) WriteMessage(msg Message) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.writer <- msg:
		return true
	case <-w.done:
		return false
	}
}

func (w *wsWriter) TryWriteMessage(msg Message) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.writer <- msg:
		return true
	default:
		return false
	}
}

func (w *wsWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
}
