package mllpclient

import (
	"sync"
	"time"

	"github.com/arloliu/go-hl7/hl7"
)

// EventType names a channel event.
type EventType string

// Channel events.
const (
	// EventReady is emitted when the socket is connected.
	EventReady EventType = "ready"
	// EventSent is emitted after a frame was written. Event.Count holds the running sent count.
	EventSent EventType = "client.sent"
	// EventAcknowledged is emitted for every received frame. Event.Count holds the running ack count.
	EventAcknowledged EventType = "client.acknowledged"
	// EventClose is emitted when the channel is closed without an error.
	EventClose EventType = "client.close"
	// EventError is emitted when the channel is closed by an error. Event.Err holds the cause.
	EventError EventType = "error"
	// EventTimeout is emitted when a connection attempt timed out and a retry is scheduled.
	// Event.Attempt is the retry number and Event.Delay the backoff delay.
	EventTimeout EventType = "timeout"
	// EventRetry is emitted when a scheduled retry starts.
	EventRetry EventType = "retry"
)

// Event is delivered to event handlers.
type Event struct {
	Type    EventType
	Count   uint64
	Err     error
	Attempt int
	Delay   time.Duration
}

// EventHandler handles channel events.
//
// Note: handlers are invoked synchronously on the goroutine that produced the event. Take care
// with long-running implementations.
type EventHandler func(ch *Channel, ev Event)

// AckHandler is invoked for every acknowledgment received by a channel.
type AckHandler func(ch *Channel, ack *hl7.Ack)

// eventRegistry keeps handlers per event type. Handlers registered without types receive all events.
type eventRegistry struct {
	mu     sync.RWMutex
	all    []EventHandler
	byType map[EventType][]EventHandler
}

func newEventRegistry() *eventRegistry {
	return &eventRegistry{byType: make(map[EventType][]EventHandler)}
}

func (r *eventRegistry) add(handler EventHandler, types ...EventType) {
	if handler == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(types) == 0 {
		r.all = append(r.all, handler)
		return
	}

	for _, t := range types {
		r.byType[t] = append(r.byType[t], handler)
	}
}

func (r *eventRegistry) emit(ch *Channel, ev Event) {
	r.mu.RLock()
	handlers := make([]EventHandler, 0, len(r.all)+len(r.byType[ev.Type]))
	handlers = append(handlers, r.all...)
	handlers = append(handlers, r.byType[ev.Type]...)
	r.mu.RUnlock()

	for _, h := range handlers {
		h(ch, ev)
	}
}
