package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives events from the bus. Handlers run synchronously on the
// emitting goroutine and must not block.
type Handler func(*Event)

// Bus fans events out to subscribers by type
type Bus struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[EventType]map[uint64]Handler
	now         func() time.Time
	log         zerolog.Logger
}

// NewBus creates an empty event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType]map[uint64]Handler),
		now:         time.Now,
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for one event type and returns an id for Unsubscribe
func (b *Bus) Subscribe(eventType EventType, handler Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[uint64]Handler)
	}
	b.subscribers[eventType][b.nextID] = handler
	return b.nextID
}

// SubscribeAll registers a handler for every type in AllEventTypes and
// returns the subscription ids
func (b *Bus) SubscribeAll(handler Handler) []uint64 {
	ids := make([]uint64, 0, len(AllEventTypes))
	for _, t := range AllEventTypes {
		ids = append(ids, b.Subscribe(t, handler))
	}
	return ids
}

// Unsubscribe removes subscriptions. Unknown ids are ignored.
func (b *Bus) Unsubscribe(ids ...uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		for t, handlers := range b.subscribers {
			if _, ok := handlers[id]; ok {
				delete(handlers, id)
				if len(handlers) == 0 {
					delete(b.subscribers, t)
				}
				break
			}
		}
	}
}

// SubscriberCount returns the number of handlers registered for a type
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// Emit delivers an event to every subscriber of its type. A panicking
// handler is logged and does not stop delivery to the others.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[eventType]))
	for _, h := range b.subscribers[eventType] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	event := &Event{
		Type:      eventType,
		Timestamp: b.now(),
		Data:      data,
		Module:    module,
	}

	for _, h := range handlers {
		b.deliver(h, event)
	}
}

func (b *Bus) deliver(h Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	h(event)
}
