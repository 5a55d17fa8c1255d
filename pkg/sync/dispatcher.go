// Package sync is the synchronization core: it serializes realtime and
// resync events into batches and drives the four reconciliation steps —
// global state, channel states, offline storage, thread states.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	stdsync "sync"
	"time"

	"chatsync/pkg/channel"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/query"
	"chatsync/pkg/repo"
	"chatsync/pkg/state"
	"chatsync/pkg/telemetry"
	"chatsync/pkg/thread"
)

// ErrIdentityMismatch is returned when a connected event reports a user
// other than the configured session user. This is an integration bug, not
// a recoverable runtime condition; the dispatcher stops.
var ErrIdentityMismatch = errors.New("connected event user does not match session user")

// Options tunes the dispatcher.
type Options struct {
	QueueCapacity int
	BatchSize     int
	TypingRPS     float64
	TypingBurst   int
}

func (o Options) withDefaults() Options {
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = defaultQueueCapacity
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	return o
}

// Dispatcher is the single entry point for event reconciliation. At most
// one batch is being processed at any time; the live stream and the
// resync stream both serialize through the same exclusion lock.
type Dispatcher struct {
	opts     Options
	global   *state.Global
	channels *channel.Registry
	queries  *query.Registry
	threads  *thread.Registry
	repo     repo.Repository
	typing   *typingLimiter

	queue *Queue

	// batchMu is the global exclusion: step 1 of batch N+1 never starts
	// before step 4 of batch N completes.
	batchMu stdsync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     stdsync.WaitGroup
	sub    Disposable

	errMu    stdsync.Mutex
	fatalErr error
}

// Deps carries the state containers the dispatcher drives.
type Deps struct {
	Global   *state.Global
	Channels *channel.Registry
	Queries  *query.Registry
	Threads  *thread.Registry
	Repo     repo.Repository
}

// NewDispatcher wires a dispatcher over the session's state containers.
func NewDispatcher(deps Deps, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		opts:     opts,
		global:   deps.Global,
		channels: deps.Channels,
		queries:  deps.Queries,
		threads:  deps.Threads,
		repo:     deps.Repo,
		typing:   newTypingLimiter(opts.TypingRPS, opts.TypingBurst),
		queue:    NewQueue(opts.QueueCapacity),
	}
}

// Start subscribes to the source and runs the dispatch loops until Stop.
func (d *Dispatcher) Start(ctx context.Context, source EventSource) {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.sub = source.SubscribeForEvents(func(ev models.Event) {
		if err := d.queue.TryEnqueue(ev); err != nil {
			telemetry.QueueDropped.Inc()
			logger.Warn("live_event_dropped", "event", ev.EventType(), "error", err)
		}
		telemetry.QueueDepth.Set(float64(d.queue.Len()))
	})

	// live loop: drain bursts into batches
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			events := d.queue.DrainBatch(d.ctx.Done(), d.opts.BatchSize)
			if events == nil {
				return
			}
			telemetry.QueueDepth.Set(float64(d.queue.Len()))
			d.process(NewBatch(OriginLive, events))
			if d.Err() != nil {
				return
			}
		}
	}()

	// resync loop
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case events, ok := <-source.SyncedEvents():
				if !ok {
					return
				}
				d.process(NewBatch(OriginResync, events))
				if d.Err() != nil {
					return
				}
			case <-d.ctx.Done():
				return
			}
		}
	}()
}

// Stop disposes the live subscription, cancels in-flight work and waits
// for the loops to exit. A batch already flushed to storage is not rolled
// back.
func (d *Dispatcher) Stop() {
	if d.sub != nil {
		d.sub.Dispose()
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.queue.Close()
	d.wg.Wait()
}

// Err returns the fatal error that stopped the dispatcher, if any.
func (d *Dispatcher) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.fatalErr
}

func (d *Dispatcher) setFatal(err error) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	if d.fatalErr == nil {
		d.fatalErr = err
	}
	if d.cancel != nil {
		d.cancel()
	}
}

// Submit runs one batch through the four steps synchronously; exported
// for resync-style callers and tests that bypass Start.
func (d *Dispatcher) Submit(origin Origin, events []models.Event) {
	d.process(NewBatch(origin, events))
}

// process reconciles one batch under the global exclusion lock. A panic
// in any step is recorded, not propagated, so a poison batch cannot stop
// the loop.
func (d *Dispatcher) process(b Batch) {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			telemetry.BatchFailures.Inc()
			logger.Error("batch_panic", "batch", b.ID, "origin", b.Origin.String(), "panic", fmt.Sprint(r))
		}
	}()

	if len(b.Events) == 0 {
		return
	}
	telemetry.BatchesTotal.WithLabelValues(b.Origin.String()).Inc()
	for _, ev := range b.Events {
		telemetry.EventsTotal.WithLabelValues(ev.EventType()).Inc()
	}

	// events apply in non-decreasing creation-timestamp order
	events := append([]models.Event(nil), b.Events...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At().Before(events[j].At())
	})
	b.Events = events

	// step 1: global state, only from live batches
	if b.Origin == OriginLive {
		if err := d.updateGlobalState(b); err != nil {
			d.setFatal(err)
			logger.Error("dispatch_fatal", "batch", b.ID, "error", err)
			return
		}
	}

	// step 2: channel and query states
	d.updateChannelStates(b)

	// step 3: offline storage
	start := time.Now()
	if err := updateStorage(d.ctxOrBackground(), d.repo, d.global.UserID(), b); err != nil {
		telemetry.BatchFailures.Inc()
		logger.Error("storage_update_failed", "batch", b.ID, "error", err)
		// published snapshots are not retracted; the next resync corrects
		// drift
	}
	telemetry.StorageFlushSeconds.Observe(time.Since(start).Seconds())

	// step 4: thread states
	d.updateThreadStates(b)
}

func (d *Dispatcher) ctxOrBackground() context.Context {
	if d.ctx != nil {
		return d.ctx
	}
	return context.Background()
}

// updateGlobalState folds connection facts and aggregate unread counts.
func (d *Dispatcher) updateGlobalState(b Batch) error {
	for _, ev := range b.Events {
		switch e := ev.(type) {
		case *models.ConnectedEvent:
			if e.Me == nil {
				continue
			}
			if e.Me.ID != d.global.UserID() {
				return fmt.Errorf("%w: got %q, want %q", ErrIdentityMismatch, e.Me.ID, d.global.UserID())
			}
			d.global.SetUser(e.Me)
			d.global.SetConnection(e.ConnectionID)
			d.global.SetUnreadCounts(e.Me.TotalUnreadCount, e.Me.UnreadChannels)
		case *models.DisconnectedEvent:
			d.global.SetConnectivity(state.ConnectivityOffline)
		case *models.HealthEvent:
			d.global.SetConnectivity(state.ConnectivityConnected)
		case *models.NewMessageEvent:
			// trust counts only when the owning channel confirmed the
			// read-events capability
			if st, ok := d.channels.Get(e.CID); ok {
				snap := st.Snapshot()
				if snap.Initialized() && snap.Channel.HasCapability(models.CapReadEvents) {
					d.global.SetUnreadCounts(e.TotalUnreadCount, e.UnreadChannels)
				}
			}
		case *models.NotificationMessageNewEvent:
			d.global.SetUnreadCounts(e.TotalUnreadCount, e.UnreadChannels)
		case *models.NotificationMarkReadEvent:
			d.global.SetUnreadCounts(e.TotalUnreadCount, e.UnreadChannels)
		case *models.MarkAllReadEvent:
			d.global.SetUnreadCounts(e.TotalUnreadCount, e.UnreadChannels)
		case *models.UserUpdatedEvent:
			if e.User != nil && e.User.ID == d.global.UserID() {
				d.global.SetUser(e.User)
			}
		}
	}
	return nil
}

// updateChannelStates is step two: route each event to the states that
// own it, then let every active query fold the event in parallel and
// rejoin before the storage step.
func (d *Dispatcher) updateChannelStates(b Batch) {
	for _, ev := range b.Events {
		switch e := ev.(type) {
		case *models.MarkAllReadEvent:
			for _, st := range d.channels.Active() {
				st.Apply(ev)
			}
		case *models.NotificationChannelMutesUpdatedEvent:
			for _, st := range d.channels.Active() {
				st.Apply(ev)
			}
		case *models.UserPresenceChangedEvent:
			if e.User == nil {
				continue
			}
			for _, st := range d.channels.Active() {
				snap := st.Snapshot()
				if snap.Initialized() && snap.Channel.Member(e.User.ID) != nil {
					st.Apply(ev)
				}
			}
		case *models.UserUpdatedEvent:
			// profile changes refresh the user reference in every channel
			// the user is a member of
			if e.User == nil {
				continue
			}
			for _, st := range d.channels.Active() {
				snap := st.Snapshot()
				if snap.Initialized() && snap.Channel.Member(e.User.ID) != nil {
					st.Apply(ev)
				}
			}
		case *models.TypingStartEvent:
			if e.User != nil && !d.typing.Allow(e.CID, e.User.ID) {
				continue
			}
			d.channels.ForCid(e.CID).Apply(ev)
		default:
			if cev, ok := ev.(models.CidEvent); ok && cev.Cid() != "" {
				d.channels.ForCid(cev.Cid()).Apply(ev)
			}
		}
	}

	queries := d.queries.Active()
	if len(queries) == 0 {
		return
	}
	var wg stdsync.WaitGroup
	for _, qs := range queries {
		wg.Add(1)
		go func(qs *query.State) {
			defer wg.Done()
			for _, ev := range b.Events {
				qs.Apply(ev)
			}
		}(qs)
	}
	wg.Wait()
}

// updateThreadStates is step four: message-carrying events reach the
// active thread states; each state filters on its own parent key.
func (d *Dispatcher) updateThreadStates(b Batch) {
	active := d.threads.Active()
	if len(active) == 0 {
		return
	}
	for _, ev := range b.Events {
		if _, ok := ev.(models.MessageCarrier); !ok {
			continue
		}
		for _, st := range active {
			st.Apply(ev)
		}
	}
}
