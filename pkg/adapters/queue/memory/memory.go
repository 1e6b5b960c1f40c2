package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aescanero/netprov/pkg/domain"
	"github.com/aescanero/netprov/pkg/ports"
)

// Bus implements the dispatch Queue and the lifecycle EventBus in memory.
// This is for testing purposes only. Delivery is at-least-once: a failed
// handler puts the request id back on the queue.
type Bus struct {
	jobs chan string

	mu      sync.RWMutex
	tailers []chan domain.Event
	closed  bool
}

// NewBus creates a new in-memory bus
func NewBus() *Bus {
	return &Bus{
		jobs: make(chan string, 1024),
	}
}

// Enqueue submits a request id for provisioning (ports.Queue interface)
func (b *Bus) Enqueue(ctx context.Context, requestID string) error {
	select {
	case b.jobs <- requestID:
		return nil
	default:
		return fmt.Errorf("queue full")
	}
}

// Consume delivers queued request ids to handler until ctx is done
// (ports.Queue interface)
func (b *Bus) Consume(ctx context.Context, consumer string, handler ports.JobHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case requestID := <-b.jobs:
			if err := handler(ctx, requestID); err != nil {
				// Redeliver unless the queue is full or shut down.
				select {
				case b.jobs <- requestID:
				default:
				}
			}
		}
	}
}

// Publish publishes a lifecycle event to all tailers (ports.EventBus interface)
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.tailers {
		select {
		case ch <- event:
		default:
			// Tailer is slow; events are observational and droppable.
		}
	}
	return nil
}

// Tail streams events published after the call until ctx is done
// (ports.EventBus interface)
func (b *Bus) Tail(ctx context.Context, handler ports.EventHandler) error {
	ch := make(chan domain.Event, 64)

	b.mu.Lock()
	b.tailers = append(b.tailers, ch)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		for i, c := range b.tailers {
			if c == ch {
				b.tailers = append(b.tailers[:i], b.tailers[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-ch:
			if err := handler(ctx, event); err != nil {
				return err
			}
		}
	}
}

// Depth returns the number of queued request ids. Test helper.
func (b *Bus) Depth() int {
	return len(b.jobs)
}

// Close closes the bus and cleans up resources
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	return nil
}
