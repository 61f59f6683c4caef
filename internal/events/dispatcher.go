package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/taskplan-api/internal/platform/logger"
)

// ErrDispatcherNotStarted is returned by Publish before Start was called.
var ErrDispatcherNotStarted = errors.New("event dispatcher not started")

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	// WorkerCount determines how many goroutines deliver events.
	// If zero or negative, defaults to 1
	WorkerCount int

	// QueueSize is the buffer size for pending events.
	// If zero or negative, defaults to 1
	QueueSize int
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// Dispatcher is an asynchronous Publisher. Publish serializes the message
// and enqueues it; a pool of workers hands each event to the emitter.
type Dispatcher struct {
	emitter     EventEmitter
	queue       *Queue
	workerCount int
	wg          sync.WaitGroup
	logger      *slog.Logger

	mu      sync.Mutex
	started bool

	// errorHandler is called when delivery fails. If nil, errors are only logged
	errorHandler func(event *ChangeEvent, err error)
}

var _ Publisher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher delivering to emitter.
func NewDispatcher(emitter EventEmitter, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if emitter == nil {
		panic("emitter cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	logger = logger.With(slog.String("component", "event_dispatcher"))

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	return &Dispatcher{
		emitter:     emitter,
		queue:       NewQueue(queueSize, logger),
		workerCount: workerCount,
		logger:      logger,
	}
}

// SetErrorHandler sets a callback for delivery failures.
// Must be called before Start.
func (d *Dispatcher) SetErrorHandler(handler func(event *ChangeEvent, err error)) {
	d.errorHandler = handler
}

// Start launches the worker goroutines. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("event dispatcher started", "worker_count", d.workerCount)
}

// Publish implements Publisher. It never blocks on delivery; a full or
// closed queue is reported as an error.
func (d *Dispatcher) Publish(ctx context.Context, topic string, msg Message) error {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return ErrDispatcherNotStarted
	}

	event, err := NewChangeEvent(topic, msg)
	if err != nil {
		return fmt.Errorf("failed to serialize %s event: %w", topic, err)
	}

	// Delivery outlives the request; keep its values, drop its deadline.
	return d.queue.Enqueue(context.WithoutCancel(ctx), event)
}

// Stop closes the queue and waits for workers to drain it, or for ctx to
// be done, whichever comes first.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.queue.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("event dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("event dispatcher stop timed out", "pending", d.queue.Len())
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	d.logger.Debug("starting worker", "worker_id", id)

	for item := range d.queue.channel() {
		d.deliver(item, id)
	}
	d.logger.Debug("event channel closed, stopping worker", "worker_id", id)
}

func (d *Dispatcher) deliver(item queued, workerID int) {
	log := logger.FromContextOrDefault(item.ctx, d.logger).With(
		"event_id", item.event.ID,
		"topic", item.event.Topic,
		"worker_id", workerID,
	)

	if err := d.emitter.EmitEvent(item.ctx, item.event); err != nil {
		log.Error("event delivery failed", "error", err)
		if d.errorHandler != nil {
			d.errorHandler(item.event, err)
		}
		return
	}
	log.Debug("event delivered")
}
