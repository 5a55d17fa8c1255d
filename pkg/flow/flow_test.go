package flow

import "testing"

func TestSubscribePrimedWithCurrentValue(t *testing.T) {
	f := New(42)
	ch, cancel := f.Subscribe()
	defer cancel()
	if got := <-ch; got != 42 {
		t.Fatalf("expected primed value 42, got %d", got)
	}
}

func TestSetConflatesForSlowSubscriber(t *testing.T) {
	f := New(0)
	ch, cancel := f.Subscribe()
	defer cancel()

	// the subscriber never reads between publishes; only the newest value
	// may remain pending
	f.Set(1)
	f.Set(2)
	f.Set(3)

	if got := <-ch; got != 3 {
		t.Fatalf("expected conflated latest value 3, got %d", got)
	}
	if f.Value() != 3 {
		t.Fatalf("expected Value 3, got %d", f.Value())
	}
}

func TestUpdateAppliesUnderLock(t *testing.T) {
	f := New(10)
	f.Update(func(v int) int { return v * 2 })
	if f.Value() != 20 {
		t.Fatalf("expected 20, got %d", f.Value())
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	f := New("a")
	_, cancel := f.Subscribe()
	if f.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", f.Subscribers())
	}
	cancel()
	cancel() // idempotent
	if f.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers after cancel, got %d", f.Subscribers())
	}
	f.Set("b") // must not panic on the closed channel
}
