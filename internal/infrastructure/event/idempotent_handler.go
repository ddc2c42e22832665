package event

import (
	"context"
	"sync/atomic"

	"github.com/erp/refunds/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyMetrics tracks deduplication statistics
type IdempotencyMetrics struct {
	EventsProcessed atomic.Int64
	EventsDuplicate atomic.Int64
	EventsFailed    atomic.Int64
}

// Stats returns a snapshot of the current metrics
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: m.EventsProcessed.Load(),
		EventsDuplicate: m.EventsDuplicate.Load(),
		EventsFailed:    m.EventsFailed.Load(),
	}
}

// IdempotencyStats is a snapshot of idempotency metrics
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// KeyFunc derives the deduplication key of an event
type KeyFunc func(shared.DomainEvent) string

// IdempotentHandler wraps an EventHandler so that events with the same key
// are handled at most once per TTL. By default the key is the event ID.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	keyFunc KeyFunc
	logger  *zap.Logger
	metrics *IdempotencyMetrics
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithKeyFunc sets how the deduplication key is derived
func WithKeyFunc(fn KeyFunc) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.keyFunc = fn
	}
}

// WithIdempotencyMetrics sets the metrics collector
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// NewIdempotentHandler creates a new idempotent handler wrapper
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		keyFunc: func(e shared.DomainEvent) string { return e.EventID().String() },
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// EventTypes returns the event types of the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle claims the event key and runs the wrapped handler only for the first claim
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	key := "event:" + h.keyFunc(event)

	isNew, err := h.store.Claim(ctx, key, h.config.TTL)
	if err != nil {
		// a store outage must not swallow the event
		h.logger.Warn("Failed to check event idempotency, processing anyway",
			zap.String("key", key),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	} else if !isNew {
		h.metrics.EventsDuplicate.Add(1)
		h.logger.Debug("Duplicate event skipped",
			zap.String("key", key),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.metrics.EventsFailed.Add(1)
		// the claim is kept until TTL so a failing handler is not retried in a tight loop
		return err
	}

	if err := h.store.Complete(ctx, key, event.EventID().String(), h.config.TTL); err != nil {
		h.logger.Warn("Failed to record handled event", zap.String("key", key), zap.Error(err))
	}
	h.metrics.EventsProcessed.Add(1)
	return nil
}

// GetMetrics returns the metrics for this handler
func (h *IdempotentHandler) GetMetrics() *IdempotencyMetrics {
	return h.metrics
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
