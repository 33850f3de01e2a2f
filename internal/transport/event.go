package transport

import "sync"

// EventType identifies what happened on a transport.
type EventType int

// Events emitted to transport subscribers.
const (
	// EventOpen fires when the broker connection is established.
	EventOpen EventType = iota + 1

	// EventReady fires when the device reports a healthy status.
	EventReady

	// EventMessage carries a frame received from the device.
	EventMessage

	// EventError carries a connection or device failure. The transport
	// stays usable; the owner decides whether to close.
	EventError

	// EventClose fires once when the session ends.
	EventClose
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "OPEN"
	case EventReady:
		return "READY"
	case EventMessage:
		return "MESSAGE"
	case EventError:
		return "ERROR"
	case EventClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Event is a single notification from a transport.
type Event struct {
	Type EventType

	// Payload is set for EventMessage and holds the frame unchanged.
	Payload []byte

	// Err is set for EventError.
	Err error
}

// Handler receives transport events.
//
// Handlers run on the transport's event loop, one event at a time and in
// order. They must not block.
type Handler func(Event)

// emitter fans events out to subscribed handlers in subscription order.
type emitter struct {
	mu       sync.Mutex
	nextID   int
	handlers []subscriber
}

type subscriber struct {
	id      int
	handler Handler
}

// subscribe registers h and returns a function that removes it.
func (e *emitter) subscribe(h Handler) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, subscriber{id: id, handler: h})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, s := range e.handlers {
				if s.id == id {
					e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// emit delivers ev to a snapshot of the current handlers.
func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	handlers := make([]subscriber, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, s := range handlers {
		s.handler(ev)
	}
}
