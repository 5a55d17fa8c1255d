package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatsync/pkg/models"
)

func TestTryEnqueueFullDropsAndCounts(t *testing.T) {
	q := NewQueue(2)
	if err := q.TryEnqueue(&models.HealthEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.TryEnqueue(&models.HealthEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.TryEnqueue(&models.HealthEvent{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", q.Dropped())
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 buffered, got %d", q.Len())
	}
}

func TestDrainBatchCollectsBurst(t *testing.T) {
	q := NewQueue(8)
	for i := 0; i < 5; i++ {
		if err := q.TryEnqueue(&models.HealthEvent{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	stop := make(chan struct{})
	events := q.DrainBatch(stop, 3)
	if len(events) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(events))
	}
	events = q.DrainBatch(stop, 10)
	if len(events) != 2 {
		t.Fatalf("expected remaining 2, got %d", len(events))
	}
}

func TestDrainBatchStopsOnSignal(t *testing.T) {
	q := NewQueue(8)
	stop := make(chan struct{})
	done := make(chan []models.Event, 1)
	go func() { done <- q.DrainBatch(stop, 10) }()
	close(stop)
	select {
	case events := <-done:
		if events != nil {
			t.Fatalf("expected nil batch on stop, got %d events", len(events))
		}
	case <-time.After(time.Second):
		t.Fatalf("DrainBatch did not return after stop")
	}
}

func TestEnqueueHonorsContext(t *testing.T) {
	q := NewQueue(1)
	if err := q.Enqueue(context.Background(), &models.HealthEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, &models.HealthEvent{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestCloseRejectsFurtherEnqueues(t *testing.T) {
	q := NewQueue(4)
	if err := q.TryEnqueue(&models.HealthEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.Close()
	if err := q.TryEnqueue(&models.HealthEvent{}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	q.Close() // idempotent
}
