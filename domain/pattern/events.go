package pattern

import "sync"

// EventType names a repository mutation event.
type EventType string

const (
	EventAdded    EventType = "pattern:added"
	EventUpdated  EventType = "pattern:updated"
	EventDeleted  EventType = "pattern:deleted"
	EventApproved EventType = "pattern:approved"
	EventIgnored  EventType = "pattern:ignored"
	EventLoaded   EventType = "patterns:loaded"
	EventSaved    EventType = "patterns:saved"
	EventCleared  EventType = "patterns:cleared"
)

// Event is delivered to subscribers when a repository mutates.
type Event struct {
	Type EventType

	// Pattern is the affected pattern, when the event concerns one.
	Pattern *Pattern

	// Metadata carries event-specific details (counts, file paths).
	Metadata map[string]any
}

// Handler receives events. Delivery is synchronous: the handler runs
// before the triggering repository call returns.
type Handler func(Event)

// Subscription identifies a registered handler for later removal.
type Subscription struct {
	event EventType
	id    int
}

// Emitter is a synchronous, ordered pub/sub registry for repository
// events. The zero value is not usable; create one with NewEmitter.
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType][]subscriber
}

type subscriber struct {
	id      int
	handler Handler
}

// NewEmitter creates an event emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		handlers: make(map[EventType][]subscriber),
	}
}

// Subscribe registers a handler for an event type and returns the
// subscription used to remove it.
func (e *Emitter) Subscribe(event EventType, h Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	e.handlers[event] = append(e.handlers[event], subscriber{id: e.nextID, handler: h})
	return Subscription{event: event, id: e.nextID}
}

// Unsubscribe removes a previously registered handler.
func (e *Emitter) Unsubscribe(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.handlers[sub.event]
	for i, s := range subs {
		if s.id == sub.id {
			e.handlers[sub.event] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Emit delivers the event to every handler registered for its type, in
// subscription order, on the calling goroutine.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	subs := append([]subscriber(nil), e.handlers[ev.Type]...)
	e.mu.RUnlock()

	for _, s := range subs {
		s.handler(ev)
	}
}
