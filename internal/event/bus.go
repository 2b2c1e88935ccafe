package event

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine, in subscription order.
type Handler func(Event)

// Subscription identifies a registered handler so it can be removed later.
type Subscription uint64

// wildcard handlers receive every event regardless of type.
const wildcard = "*"

// Bus is a synchronous in-process pub-sub bus keyed by event type. The
// pipeline engine publishes run and stage transitions on it; progress
// displays and log subscribers react without the engine knowing them.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	lastID   Subscription
}

type registration struct {
	id      Subscription
	handler Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]registration)}
}

// Subscribe registers a handler for one event type ("category.action").
func (b *Bus) Subscribe(eventType string, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastID++
	b.handlers[eventType] = append(b.handlers[eventType], registration{
		id:      b.lastID,
		handler: h,
	})
	return b.lastID
}

// SubscribeAll registers a handler that receives every published event.
func (b *Bus) SubscribeAll(h Handler) Subscription {
	return b.Subscribe(wildcard, h)
}

// Unsubscribe removes a handler. It reports whether the subscription
// was still registered.
func (b *Bus) Unsubscribe(id Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, regs := range b.handlers {
		for i, reg := range regs {
			if reg.id == id {
				b.handlers[eventType] = append(regs[:i], regs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Subscribers returns how many handlers would receive an event of the
// given type, wildcard handlers included.
func (b *Bus) Subscribers(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType]) + len(b.handlers[wildcard])
}

// Publish delivers ev to handlers subscribed to its type, then to
// wildcard handlers, each group in subscription order. The handler list
// is snapshotted first so a handler may subscribe or unsubscribe without
// deadlocking the bus.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	typed := b.handlers[ev.EventType()]
	all := b.handlers[wildcard]
	pending := make([]registration, 0, len(typed)+len(all))
	pending = append(pending, typed...)
	pending = append(pending, all...)
	b.mu.RUnlock()

	for _, reg := range pending {
		deliver(reg.handler, ev)
	}
}

// deliver runs one handler, containing a panic so the remaining handlers
// still see the event.
func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"event", ev.EventType(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	h(ev)
}
