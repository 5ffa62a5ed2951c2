package notify

import (
	"context"
	"log/slog"
)

// Emitter receives events from the lifecycle and inventory engines. Emit must
// never block and must never surface an error to the caller: delivery failure
// is the notification subsystem's problem, not the engine's.
type Emitter interface {
	Emit(event Event)
}

// Enqueuer hands an event to the background delivery queue. Implemented by
// the jobs client; fakes implement it in tests.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, event Event) error
}

// DropCounter observes events dropped before delivery.
type DropCounter interface {
	ObserveNotificationDropped()
}

// QueueEmitter buffers events on a bounded channel drained by Run. A full
// buffer drops the event rather than blocking the emitting operation.
type QueueEmitter struct {
	ch      chan Event
	logger  *slog.Logger
	queue   Enqueuer
	metrics DropCounter
}

// NewQueueEmitter builds a QueueEmitter with the given buffer size.
func NewQueueEmitter(size int, queue Enqueuer, logger *slog.Logger, metrics DropCounter) *QueueEmitter {
	if size <= 0 {
		size = 256
	}
	return &QueueEmitter{
		ch:      make(chan Event, size),
		logger:  logger,
		queue:   queue,
		metrics: metrics,
	}
}

// Emit offers the event to the buffer, dropping it when full.
func (e *QueueEmitter) Emit(event Event) {
	select {
	case e.ch <- event:
	default:
		if e.metrics != nil {
			e.metrics.ObserveNotificationDropped()
		}
		e.logger.Warn("notification queue full, dropping event",
			slog.String("type", string(event.Type)),
			slog.String("event_id", event.ID.String()))
	}
}

// Run drains the buffer until context cancellation, handing each event to the
// enqueuer. Enqueue errors are logged and swallowed.
func (e *QueueEmitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-e.ch:
			if err := e.queue.EnqueueNotification(ctx, event); err != nil {
				e.logger.Warn("notification enqueue failed",
					slog.String("type", string(event.Type)),
					slog.Any("error", err))
			}
		}
	}
}

// NopEmitter discards events. Used where notifications are not wired, e.g. in
// tests and one-shot CLI commands.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(Event) {}
