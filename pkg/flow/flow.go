// Package flow provides a minimal replay-latest observable cell. Reducers
// publish immutable snapshots through a Flow; UI observers subscribe and
// always receive the current value first.
package flow

import "sync"

// Flow holds a latest value and fans it out to subscribers. A subscriber
// that falls behind is overwritten with the newest value rather than
// blocking the publisher (conflated delivery).
type Flow[T any] struct {
	mu      sync.Mutex
	value   T
	set     bool
	subs    map[int]chan T
	nextSub int
}

// New returns a Flow primed with the given initial value.
func New[T any](initial T) *Flow[T] {
	return &Flow[T]{value: initial, set: true, subs: map[int]chan T{}}
}

// Value returns the latest published value.
func (f *Flow[T]) Value() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set publishes a new value to all subscribers without blocking on any of
// them.
func (f *Flow[T]) Set(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = v
	f.set = true
	for _, ch := range f.subs {
		// conflate: drop the stale pending value if the subscriber has
		// not consumed it yet
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Update applies fn to the current value under the lock and publishes the
// result.
func (f *Flow[T]) Update(fn func(T) T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = fn(f.value)
	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- f.value
	}
}

// Subscribe registers a new observer. The returned channel is primed with
// the current value; cancel removes the subscription and closes it.
func (f *Flow[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	ch := make(chan T, 1)
	if f.set {
		ch <- f.value
	}
	f.subs[id] = ch
	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Subscribers reports the current number of observers.
func (f *Flow[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
