package engine

import (
	"sync"
	"time"
)

type EventType int

type SubscriberID int

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type subscriber struct {
	id SubscriberID
	fn func(Event)
}

// EventBus dispatches events synchronously. Typed subscribers are
// indexed per event type so an Emit only touches handlers that care;
// catch-all subscribers see everything.
type EventBus struct {
	mu     sync.RWMutex
	all    []subscriber
	typed  map[EventType][]subscriber
	nextID SubscriberID
}

func NewEventBus() *EventBus {
	return &EventBus{typed: make(map[EventType][]subscriber)}
}

// Subscribe registers a handler for all event types.
func (eb *EventBus) Subscribe(fn func(Event)) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	eb.all = append(eb.all, subscriber{id: eb.nextID, fn: fn})
	return eb.nextID
}

// SubscribeTypes registers a handler for specific event types.
func (eb *EventBus) SubscribeTypes(fn func(Event), types ...EventType) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	s := subscriber{id: eb.nextID, fn: fn}
	for _, t := range types {
		eb.typed[t] = append(eb.typed[t], s)
	}
	return eb.nextID
}

// Unsubscribe removes a subscriber by ID.
func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, s := range eb.all {
		if s.id == id {
			eb.all = append(eb.all[:i], eb.all[i+1:]...)
			return
		}
	}
	for t, subs := range eb.typed {
		for i, s := range subs {
			if s.id == id {
				eb.typed[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish wraps a payload in an Event and emits it.
func (eb *EventBus) Publish(t EventType, payload any) {
	eb.Emit(Event{Type: t, Payload: payload})
}

// Emit sends an event to the catch-all subscribers, then to the
// subscribers registered for its type, in registration order.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	subs := make([]subscriber, 0, len(eb.all)+len(eb.typed[evt.Type]))
	subs = append(subs, eb.all...)
	subs = append(subs, eb.typed[evt.Type]...)
	eb.mu.RUnlock()

	for _, s := range subs {
		s.fn(evt)
	}
}
