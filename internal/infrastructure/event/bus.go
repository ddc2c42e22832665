package event

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/erp/refunds/internal/domain/shared"
	"go.uber.org/zap"
)

// subscription binds a handler to the event types it receives. An empty type
// list receives every event.
type subscription struct {
	handler    shared.EventHandler
	eventTypes []string
}

func (s subscription) matches(eventType string) bool {
	return len(s.eventTypes) == 0 || slices.Contains(s.eventTypes, eventType)
}

// InMemoryEventBus implements EventBus with synchronous in-process dispatch.
// A failing or panicking handler is logged and never affects the publisher.
type InMemoryEventBus struct {
	mu            sync.RWMutex
	subscriptions []subscription
	logger        *zap.Logger
	running       atomic.Bool
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{logger: logger}
}

// Publish dispatches each event to the matching handlers in subscription order
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		for _, handler := range b.handlersFor(event.EventType()) {
			if err := b.dispatchToHandler(ctx, handler, event); err != nil {
				b.logger.Error("Event handler failed",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler. Without explicit types the handler's own EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, subscription{
		handler:    handler,
		eventTypes: slices.Clone(eventTypes),
	})
	b.mu.Unlock()

	b.logger.Debug("Event handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes every subscription of a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscriptions = slices.DeleteFunc(b.subscriptions, func(s subscription) bool {
		return s.handler == handler
	})
}

// Start marks the bus as running
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.running.Store(true)
	b.logger.Info("Event bus started")
	return nil
}

// Stop marks the bus as stopped. Dispatch is synchronous so nothing is in flight.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.running.Store(false)
	b.logger.Info("Event bus stopped")
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop
func (b *InMemoryEventBus) IsRunning() bool {
	return b.running.Load()
}

// handlersFor snapshots the matching handlers so dispatch runs without the lock
func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var handlers []shared.EventHandler
	for _, s := range b.subscriptions {
		if s.matches(eventType) {
			handlers = append(handlers, s.handler)
		}
	}
	return handlers
}

func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
