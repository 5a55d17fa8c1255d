package sync

import (
	"bufio"
	"os"
	stdsync "sync"

	"chatsync/pkg/logger"
	"chatsync/pkg/models"
)

// Disposable cancels a live-event subscription.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a func to Disposable.
type DisposeFunc func()

func (f DisposeFunc) Dispose() { f() }

// EventSource is the transport boundary: a push stream of individual live
// events plus a channel of historical batches delivered after reconnect.
type EventSource interface {
	// SubscribeForEvents registers a listener for live events; disposing
	// the result stops delivery.
	SubscribeForEvents(listener func(models.Event)) Disposable
	// SyncedEvents delivers historical resync batches.
	SyncedEvents() <-chan []models.Event
}

// Replay is an EventSource backed by a JSONL event log. Lines marked by
// the caller's split point are delivered as one resync batch, the rest as
// individual live events. Used by chatsyncd and tests.
type Replay struct {
	live   []models.Event
	synced chan []models.Event
}

// NewReplay reads a JSONL event log. Undecodable lines are skipped with a
// warning.
func NewReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := &Replay{synced: make(chan []models.Event, 1)}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := models.DecodeEvent(line)
		if err != nil {
			logger.Warn("replay_skip_line", "error", err)
			continue
		}
		r.live = append(r.live, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewReplayEvents builds a replay source from already-decoded events.
func NewReplayEvents(events []models.Event) *Replay {
	return &Replay{live: events, synced: make(chan []models.Event, 1)}
}

// SubscribeForEvents pushes every loaded event to the listener once.
func (r *Replay) SubscribeForEvents(listener func(models.Event)) Disposable {
	stop := make(chan struct{})
	go func() {
		for _, ev := range r.live {
			select {
			case <-stop:
				return
			default:
			}
			listener(ev)
		}
	}()
	var once stdsync.Once
	return DisposeFunc(func() { once.Do(func() { close(stop) }) })
}

// SyncedEvents exposes the resync channel; PushSynced feeds it.
func (r *Replay) SyncedEvents() <-chan []models.Event { return r.synced }

// PushSynced delivers a historical batch through the resync stream.
func (r *Replay) PushSynced(events []models.Event) {
	r.synced <- events
}
