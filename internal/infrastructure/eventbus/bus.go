package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/pkg/safego"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Event is something that happened during a support conversation.
type Event interface {
	Type() string
	Timestamp() time.Time
	Payload() any
}

// BaseEvent is the default Event implementation.
type BaseEvent struct {
	EventType      string
	EventTimestamp time.Time
	EventPayload   any
}

func (e *BaseEvent) Type() string         { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTimestamp }
func (e *BaseEvent) Payload() any         { return e.EventPayload }

// NewEvent stamps payload with the current time.
func NewEvent(eventType string, payload any) *BaseEvent {
	return &BaseEvent{
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
}

// Handler consumes an event. Handlers run on the bus goroutines, never on
// the publisher's.
type Handler func(ctx context.Context, event Event)

// Publisher is the write side of a Bus.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Bus fans events out to subscribers.
type Bus interface {
	Publisher
	Subscribe(eventType string, handler Handler)
	Close()
}

// InMemoryBus dispatches events in publish order from a buffered channel.
// Publish never blocks a chat turn: when the buffer is full the event is
// dropped and counted.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	queue    chan queued
	closed   bool
	dropped  atomic.Uint64
	logger   *zap.Logger
	wg       sync.WaitGroup
}

type queued struct {
	ctx   context.Context
	event Event
}

func NewInMemoryBus(logger *zap.Logger, bufferSize int) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	bus := &InMemoryBus{
		handlers: make(map[string][]Handler),
		queue:    make(chan queued, bufferSize),
		logger:   logger.With(zap.String("component", "eventbus")),
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Publish queues event for dispatch. Handlers outlive the request that
// published the event, so they receive ctx detached from its cancellation.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	select {
	case b.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		n := b.dropped.Add(1)
		b.logger.Warn("Event buffer full, dropping event",
			zap.String("type", event.Type()),
			zap.Uint64("dropped_total", n),
		)
	}
}

// Dropped is the number of events lost to a full buffer.
func (b *InMemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Close drains queued events and stops the dispatcher. Publishing after
// Close is a no-op.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("Event bus closed", zap.Uint64("dropped", b.Dropped()))
}

func (b *InMemoryBus) dispatch() {
	defer b.wg.Done()

	for q := range b.queue {
		b.deliver(q.ctx, q.event)
	}
}

// deliver runs the type's handlers, then the wildcard handlers, one after
// another. A panicking handler is logged and skipped.
func (b *InMemoryBus) deliver(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type()])+len(b.handlers[Wildcard]))
	handlers = append(handlers, b.handlers[event.Type()]...)
	handlers = append(handlers, b.handlers[Wildcard]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		safego.Run(b.logger, "event:"+event.Type(), func() { h(ctx, event) })
	}
}
