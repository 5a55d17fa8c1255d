package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"sync/atomic"

	"chatsync/pkg/models"
)

const (
	defaultQueueCapacity  = 4096
	fallbackQueueCapacity = 256
	defaultBatchSize      = 128
)

var (
	// ErrQueueFull is returned by TryEnqueue when the live buffer is at
	// capacity.
	ErrQueueFull = errors.New("event queue full")
	// ErrQueueClosed is returned once the queue has been shut down.
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is the bounded buffer between the live socket stream and the
// mutually-exclusive dispatch path. A burst of socket events parks here
// while the previous batch is still being reconciled.
type Queue struct {
	ch       chan models.Event
	capacity int
	dropped  uint64
	closed   int32
	enqWg    stdsync.WaitGroup
}

// NewQueue creates a bounded queue of the given capacity (>0).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = fallbackQueueCapacity
	}
	return &Queue{ch: make(chan models.Event, capacity), capacity: capacity}
}

// TryEnqueue enqueues without blocking; a full queue drops the event and
// returns ErrQueueFull.
func (q *Queue) TryEnqueue(ev models.Event) error {
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}
	q.enqWg.Add(1)
	defer q.enqWg.Done()
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- ev:
		return nil
	default:
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// Enqueue blocks until space is available or ctx expires.
func (q *Queue) Enqueue(ctx context.Context, ev models.Event) error {
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}
	q.enqWg.Add(1)
	defer q.enqWg.Done()
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		atomic.AddUint64(&q.dropped, 1)
		return ctx.Err()
	}
}

// DrainBatch blocks for the first event, then greedily collects up to
// batchSize already-buffered events so a socket burst becomes one batch.
// Returns nil when stop fires or the queue closes.
func (q *Queue) DrainBatch(stop <-chan struct{}, batchSize int) []models.Event {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	var events []models.Event
	select {
	case ev, ok := <-q.ch:
		if !ok {
			return nil
		}
		events = append(events, ev)
	case <-stop:
		return nil
	}
collect:
	for len(events) < batchSize {
		select {
		case ev, ok := <-q.ch:
			if !ok {
				break collect
			}
			events = append(events, ev)
		default:
			break collect
		}
	}
	return events
}

// Close marks the queue closed and drains buffered events.
func (q *Queue) Close() {
	if !atomic.CompareAndSwapInt32(&q.closed, 0, 1) {
		return
	}
	q.enqWg.Wait()
	close(q.ch)
	for range q.ch {
	}
}

// Len returns the number of buffered events.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns how many events were rejected by a full queue or
// cancelled enqueues.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
