package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the Queue
var (
	ErrQueueClosed = errors.New("event queue is closed")
	ErrQueueFull   = errors.New("event queue is full")
)

type queued struct {
	ctx   context.Context
	event *ChangeEvent
}

// Queue is a bounded buffer of pending events.
type Queue struct {
	events chan queued
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a new event queue with the specified buffer size.
func NewQueue(size int, logger *slog.Logger) *Queue {
	return &Queue{
		events: make(chan queued, size),
		logger: logger,
	}
}

// Enqueue adds an event to the queue without blocking.
// Returns an error if the queue is full or closed.
func (q *Queue) Enqueue(ctx context.Context, event *ChangeEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.events <- queued{ctx: ctx, event: event}:
		q.logger.Debug("event enqueued",
			"event_id", event.ID,
			"topic", event.Topic,
			"queue_len", len(q.events),
			"queue_cap", cap(q.events))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.events))
	}
}

// Close prevents further submission. Events already queued stay readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.events)
		q.logger.Info("event queue closed")
	}
}

// Len reports the number of events waiting.
func (q *Queue) Len() int {
	return len(q.events)
}

func (q *Queue) channel() <-chan queued {
	return q.events
}
