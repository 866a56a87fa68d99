package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// HandlerFunc is a function that handles an event.
type HandlerFunc func(ctx context.Context, event Event) error

// Bus is a publish-subscribe event system. Unlike a fan-out-per-goroutine
// bus, delivery is ordered: a single dispatcher drains a queue so
// handlers observe events in the order the session produced them.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	queue    chan queued
	stopCh   chan struct{}
	stopped  bool
	done     chan struct{}
}

type handlerEntry struct {
	name    string
	handler HandlerFunc
}

type queued struct {
	ctx   context.Context
	event Event
}

// NewBus creates a Bus and starts its dispatcher.
func NewBus() *Bus {
	b := &Bus{
		handlers: make(map[EventType][]handlerEntry),
		queue:    make(chan queued, 256),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler for an event type. The name is used for
// logging and for Unsubscribe.
func (b *Bus) Subscribe(eventType EventType, name string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handlerEntry{
		name:    name,
		handler: handler,
	})

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("subscribed to event")
}

// Unsubscribe removes a named handler from an event type.
func (b *Bus) Unsubscribe(eventType EventType, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers, exists := b.handlers[eventType]
	if !exists {
		return
	}

	filtered := make([]handlerEntry, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	b.handlers[eventType] = filtered
}

// Emit queues an event for ordered delivery. Emit never blocks the
// session loop: when the queue is full the event is dropped and logged.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	stopped := b.stopped
	b.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case b.queue <- queued{ctx: ctx, event: event}:
	case <-b.stopCh:
	default:
		log.Warn().
			Str("event", string(event.Type)).
			Str("source", event.Source).
			Msg("event queue full, dropping event")
	}
}

// EmitSync delivers an event to all handlers before returning, bypassing
// the queue. Returns the first handler error.
func (b *Bus) EmitSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return nil
	}
	handlers := append([]handlerEntry(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	var firstErr error
	for _, h := range handlers {
		if err := b.deliver(ctx, h, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for {
		select {
		case q := <-b.queue:
			b.mu.RLock()
			handlers := append([]handlerEntry(nil), b.handlers[q.event.Type]...)
			b.mu.RUnlock()
			for _, h := range handlers {
				_ = b.deliver(q.ctx, h, q.event)
			}
		case <-b.stopCh:
			// Drain what was queued before the stop.
			for {
				select {
				case q := <-b.queue:
					b.mu.RLock()
					handlers := append([]handlerEntry(nil), b.handlers[q.event.Type]...)
					b.mu.RUnlock()
					for _, h := range handlers {
						_ = b.deliver(q.ctx, h, q.event)
					}
				default:
					return
				}
			}
		}
	}
}

// deliver runs one handler with panic recovery.
func (b *Bus) deliver(ctx context.Context, h handlerEntry, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", string(event.Type)).
				Str("handler", h.name).
				Interface("panic", r).
				Msg("handler panicked")
		}
	}()

	if err = h.handler(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event", string(event.Type)).
			Str("handler", h.name).
			Msg("handler returned error")
	}
	return err
}

// Stop stops delivery after draining already-queued events.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.stopCh)
	b.mu.Unlock()

	<-b.done
}

// StopCh returns a channel closed when the bus stops.
func (b *Bus) StopCh() <-chan struct{} {
	return b.stopCh
}

// HandlerCount returns the number of handlers registered for an event type.
func (b *Bus) HandlerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
