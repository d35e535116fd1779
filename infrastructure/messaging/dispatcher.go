// Package messaging delivers topic events to in-process subscribers and
// forwards them to external publishers
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"topicgraph/application/ports"
	"topicgraph/domain/events"
)

// AllEvents subscribes a handler to every event type
const AllEvents = "*"

// Dispatcher is an in-process EventBus. Handlers run synchronously in
// registration order; a failing handler does not stop the others.
type Dispatcher struct {
	handlers map[string][]ports.EventHandler
	mu       sync.RWMutex
	logger   *zap.Logger
}

var _ ports.EventBus = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher without subscribers
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		handlers: make(map[string][]ports.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event type
func (d *Dispatcher) Subscribe(eventType string, handler ports.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for %s", eventType)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], handler)
	return nil
}

// Publish delivers event to the handlers of its type, then to the
// catch-all handlers
func (d *Dispatcher) Publish(ctx context.Context, event events.DomainEvent) error {
	d.mu.RLock()
	handlers := make([]ports.EventHandler, 0, len(d.handlers[event.GetEventType()])+len(d.handlers[AllEvents]))
	handlers = append(handlers, d.handlers[event.GetEventType()]...)
	handlers = append(handlers, d.handlers[AllEvents]...)
	d.mu.RUnlock()

	var errs []error
	for i, handler := range handlers {
		if !handler.CanHandle(event.GetEventType()) {
			continue
		}
		if err := handler.Handle(ctx, event); err != nil {
			d.logger.Warn("Event handler failed",
				zap.String("eventType", event.GetEventType()),
				zap.String("aggregateID", event.GetAggregateID()),
				zap.Int("handler", i),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("handler %d for %s failed: %w", i, event.GetEventType(), err))
		}
	}
	return errors.Join(errs...)
}

// PublishBatch publishes events in order
func (d *Dispatcher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	var errs []error
	for _, event := range domainEvents {
		if err := d.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear removes all handlers for an event type
func (d *Dispatcher) Clear(eventType string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.handlers, eventType)
}

// Forward adapts an external publisher to a handler, so a journal or a
// remote bus can subscribe to the dispatcher
func Forward(publisher ports.EventPublisher) ports.EventHandler {
	return ports.EventHandlerFunc(publisher.Publish)
}
