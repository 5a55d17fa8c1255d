package channel

import (
	"sync"

	"chatsync/pkg/flow"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
)

// State is the single writer for one cid's snapshot. Events for the cid
// are folded in by Apply; observers subscribe through Flow.
type State struct {
	cid           string
	currentUserID string

	mu   sync.Mutex
	snap *flow.Flow[Snapshot]
}

// NewState returns an uninitialized state for cid.
func NewState(cid, currentUserID string) *State {
	return &State{
		cid:           cid,
		currentUserID: currentUserID,
		snap:          flow.New(Snapshot{Typing: map[string]TypingRecord{}}),
	}
}

// Cid returns the owning channel id.
func (s *State) Cid() string { return s.cid }

// Flow exposes the snapshot stream (replay-latest).
func (s *State) Flow() *flow.Flow[Snapshot] { return s.snap }

// Snapshot returns the current snapshot.
func (s *State) Snapshot() Snapshot { return s.snap.Value() }

// Load installs channel data, moving the state from uninitialized to
// loaded.
func (s *State) Load(ch *models.Channel) {
	s.mutate(func(old Snapshot) Snapshot { return SetChannel(old, ch) })
}

func (s *State) mutate(fn func(Snapshot) Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.snap.Value()
	next := fn(old)
	s.snap.Set(next)
}

// Apply folds one event into the snapshot. Events that don't concern a
// channel snapshot, or reference a different cid, are no-ops.
func (s *State) Apply(ev models.Event) {
	if cev, ok := ev.(models.CidEvent); ok && cev.Cid() != "" && cev.Cid() != s.cid {
		logger.Debug("channel_event_wrong_cid", "cid", s.cid, "event_cid", cev.Cid())
		return
	}
	s.mutate(func(old Snapshot) Snapshot {
		return reduce(old, ev, s.currentUserID)
	})
}

// reduce is the event-to-rule mapping for channel snapshots. Every event
// kind is either handled or listed as an explicit ignore.
func reduce(s Snapshot, ev models.Event, me string) Snapshot {
	switch e := ev.(type) {
	case *models.NewMessageEvent:
		return NewMessage(s, e.Message, me)
	case *models.NotificationMessageNewEvent:
		return NewMessage(s, e.Message, me)
	case *models.MessageUpdatedEvent:
		return UpsertMessage(s, e.Message)
	case *models.MessageDeletedEvent:
		return DeleteMessage(s, e.Message, e.Hard)

	case *models.ReactionNewEvent:
		return ApplyReaction(s, e.Message, me)
	case *models.ReactionUpdatedEvent:
		return ApplyReaction(s, e.Message, me)
	case *models.ReactionDeletedEvent:
		return ApplyReaction(s, e.Message, me)

	case *models.MemberAddedEvent:
		return UpsertMember(s, e.Member)
	case *models.MemberUpdatedEvent:
		return UpsertMember(s, e.Member)
	case *models.MemberRemovedEvent:
		if e.Member == nil || e.Member.User == nil {
			return s
		}
		return RemoveMember(s, e.Member.User.ID)
	case *models.NotificationAddedToChannelEvent:
		return UpsertMember(s, e.Member)
	case *models.NotificationRemovedFromChannelEvent:
		if e.Member == nil || e.Member.User == nil {
			return s
		}
		return RemoveMember(s, e.Member.User.ID)
	case *models.NotificationInviteAcceptedEvent:
		return UpsertMember(s, e.Member)
	case *models.NotificationInviteRejectedEvent:
		if e.Member == nil || e.Member.User == nil {
			return s
		}
		return RemoveMember(s, e.Member.User.ID)

	case *models.MessageReadEvent:
		return UpsertRead(s, e.User, e.CreatedAt)
	case *models.NotificationMarkReadEvent:
		return UpsertRead(s, e.User, e.CreatedAt)
	case *models.MarkAllReadEvent:
		return MarkAllRead(s, e.CreatedAt)

	case *models.TypingStartEvent:
		return TypingStart(s, e.User, e.CreatedAt, e.ParentID)
	case *models.TypingStopEvent:
		if e.User == nil {
			return s
		}
		return TypingStop(s, e.User.ID)

	case *models.ChannelUpdatedEvent:
		if e.Channel == nil {
			return s
		}
		return SetChannel(s, e.Channel)
	case *models.ChannelDeletedEvent:
		return SetDeleted(s, e.CreatedAt)
	case *models.NotificationChannelDeletedEvent:
		return SetDeleted(s, e.CreatedAt)
	case *models.ChannelTruncatedEvent:
		return Truncate(s, e.CreatedAt)
	case *models.NotificationChannelTruncatedEvent:
		return Truncate(s, e.CreatedAt)
	case *models.ChannelHiddenEvent:
		return SetHidden(s, true, e.ClearHistory)
	case *models.ChannelVisibleEvent:
		return SetHidden(s, false, false)
	case *models.NotificationChannelMutesUpdatedEvent:
		if e.Me == nil || !s.Initialized() {
			return s
		}
		return SetMuted(s, e.Me.HasMuted(s.Channel.CID))

	case *models.UserPresenceChangedEvent:
		return PresenceChanged(s, e.User)
	case *models.UserUpdatedEvent:
		return PresenceChanged(s, e.User)
	case *models.UserBannedEvent:
		if e.User == nil {
			return s
		}
		return SetMemberBanned(s, e.User.ID, true, e.Expiry)
	case *models.UserUnbannedEvent:
		if e.User == nil {
			return s
		}
		return SetMemberBanned(s, e.User.ID, false, nil)

	case *models.UserWatchingStartEvent:
		return WatchingStart(s, e.User, e.WatcherCount)
	case *models.UserWatchingStopEvent:
		if e.User == nil {
			return s
		}
		return WatchingStop(s, e.User.ID, e.WatcherCount)

	case *models.ChannelCreatedEvent,
		*models.NotificationInvitedEvent,
		*models.ConnectedEvent,
		*models.DisconnectedEvent,
		*models.HealthEvent,
		*models.NotificationMutesUpdatedEvent,
		*models.UserDeletedEvent,
		*models.GlobalUserBannedEvent,
		*models.GlobalUserUnbannedEvent,
		*models.UnknownEvent:
		// not reflected in channel snapshots
		return s
	}
	return s
}

// Registry owns the active channel states, one per cid, guarded by a
// keyed lock: the registry map has its own mutex and each State is its
// own single writer.
type Registry struct {
	currentUserID string

	mu     sync.Mutex
	states map[string]*State
}

// NewRegistry builds an empty registry for the session user.
func NewRegistry(currentUserID string) *Registry {
	return &Registry{currentUserID: currentUserID, states: map[string]*State{}}
}

// ForCid returns the state for cid, creating it on first reference.
func (r *Registry) ForCid(cid string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[cid]
	if !ok {
		st = NewState(cid, r.currentUserID)
		r.states[cid] = st
	}
	return st
}

// Get returns the state only if it is already active.
func (r *Registry) Get(cid string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[cid]
	return st, ok
}

// Active returns all active states.
func (r *Registry) Active() []*State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*State, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st)
	}
	return out
}

// Subscribe opens an observer stream over cid's snapshot flow, creating
// the state on first reference. The returned cancel tears the
// subscription down and evicts the state once no observer remains, so a
// watched channel's lifetime follows its last observer.
func (r *Registry) Subscribe(cid string) (<-chan Snapshot, func()) {
	st := r.ForCid(cid)
	ch, cancel := st.Flow().Subscribe()
	return ch, func() {
		cancel()
		r.Evict(cid)
	}
}

// Evict drops states whose snapshot flow has no observers left.
func (r *Registry) Evict(cid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[cid]; ok && st.Flow().Subscribers() == 0 {
		delete(r.states, cid)
	}
}
