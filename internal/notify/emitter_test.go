package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureEnqueuer struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (c *captureEnqueuer) EnqueueNotification(_ context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *captureEnqueuer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type dropCounter struct {
	mu    sync.Mutex
	drops int
}

func (d *dropCounter) ObserveNotificationDropped() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drops++
}

func (d *dropCounter) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drops
}

func TestEmitDropsWhenBufferFull(t *testing.T) {
	drops := &dropCounter{}
	emitter := NewQueueEmitter(2, &captureEnqueuer{}, slog.Default(), drops)

	// No drain goroutine running: the third event has nowhere to go.
	emitter.Emit(NewEvent(EventStatusChanged))
	emitter.Emit(NewEvent(EventUnitsMoved))
	emitter.Emit(NewEvent(EventIssueOpened))

	require.Equal(t, 1, drops.count())
}

func TestEmitNeverBlocks(t *testing.T) {
	emitter := NewQueueEmitter(1, &captureEnqueuer{}, slog.Default(), nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			emitter.Emit(NewEvent(EventStatusChanged))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a full buffer")
	}
}

func TestRunDrainsBuffer(t *testing.T) {
	queue := &captureEnqueuer{}
	emitter := NewQueueEmitter(8, queue, slog.Default(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go emitter.Run(ctx)

	for i := 0; i < 3; i++ {
		emitter.Emit(NewEvent(EventShipmentUpdate))
	}

	require.Eventually(t, func() bool { return queue.count() == 3 },
		2*time.Second, 10*time.Millisecond)
}

func TestRunSwallowsEnqueueErrors(t *testing.T) {
	queue := &captureEnqueuer{err: errors.New("redis down")}
	emitter := NewQueueEmitter(8, queue, slog.Default(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go emitter.Run(ctx)

	emitter.Emit(NewEvent(EventEmptyLocations))
	emitter.Emit(NewEvent(EventEmptyLocations))

	// Both events are attempted despite the first failure.
	require.Eventually(t, func() bool { return queue.count() == 2 },
		2*time.Second, 10*time.Millisecond)
}
