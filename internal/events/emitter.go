package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// HandlerFunc adapts a plain function to EventHandler.
type HandlerFunc func(ctx context.Context, event *ChangeEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *ChangeEvent) error {
	return f(ctx, event)
}

// InMemoryEventEmitter fans events out to subscribers in the calling goroutine.
// Handlers registered for a topic see only that topic, while handlers
// registered with RegisterHandler see every event.
type InMemoryEventEmitter struct {
	mu      sync.RWMutex
	all     []EventHandler
	byTopic map[string][]EventHandler
	logger  *slog.Logger
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		byTopic: make(map[string][]EventHandler),
		logger:  logger.With("component", "event_emitter"),
	}
}

// RegisterHandler subscribes handler to every topic.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, handler)
}

// Subscribe registers handler for events published on topic only.
func (e *InMemoryEventEmitter) Subscribe(topic string, handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byTopic[topic] = append(e.byTopic[topic], handler)
	e.logger.Debug("subscribed handler", "topic", topic, "topic_handlers", len(e.byTopic[topic]))
}

func (e *InMemoryEventEmitter) subscribers(topic string) []EventHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]EventHandler, 0, len(e.all)+len(e.byTopic[topic]))
	out = append(out, e.all...)
	return append(out, e.byTopic[topic]...)
}

// EmitEvent delivers event to every subscriber of its topic. A failing
// subscriber does not stop delivery to the rest; all failures are joined
// into the returned error.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *ChangeEvent) error {
	handlers := e.subscribers(event.Topic)
	if len(handlers) == 0 {
		e.logger.Warn("dropping event without subscribers",
			"event_id", event.ID,
			"topic", event.Topic)
		return nil
	}

	var errs []error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("subscriber failed",
				"error", err,
				"subscriber", i,
				"event_id", event.ID,
				"topic", event.Topic,
				"target", event.Target)
			errs = append(errs, fmt.Errorf("subscriber %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
