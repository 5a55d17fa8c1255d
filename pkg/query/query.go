// Package query materializes channel-list views: one State per active
// query decides, per incoming event, whether a channel joins, leaves or is
// refreshed within its result list.
package query

import (
	"sort"
	"sync"

	"chatsync/pkg/flow"
	"chatsync/pkg/models"
)

// Action is the per-event decision for one query.
type Action int

const (
	// ActionSkip means the event is irrelevant to this query.
	ActionSkip Action = iota
	// ActionAdd inserts the channel into the result list.
	ActionAdd
	// ActionRemove drops the channel from the result list.
	ActionRemove
	// ActionRefresh re-materializes the channel in place.
	ActionRefresh
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionRefresh:
		return "refresh"
	}
	return "skip"
}

// Filter decides whether a channel belongs in a query's result list.
type Filter func(*models.Channel) bool

// MembersContain is the common "my channels" filter.
func MembersContain(userID string) Filter {
	return func(ch *models.Channel) bool {
		return ch != nil && ch.Member(userID) != nil
	}
}

// Resolver reads a channel's current published snapshot by cid. Queries
// never reach into another reducer's private state.
type Resolver func(cid string) *models.Channel

// Snapshot is the materialized result list, ordered by last message time
// descending.
type Snapshot struct {
	QueryID  string
	Channels []*models.Channel
}

// Contains reports list membership for cid.
func (s Snapshot) Contains(cid string) bool {
	for _, ch := range s.Channels {
		if ch.CID == cid {
			return true
		}
	}
	return false
}

// Decide is the pure decision function: (event kind, membership,
// channel's new state) -> action. MarkAllRead and presence events are
// handled by State.Apply as whole-list operations, not here.
func Decide(ev models.Event, contains bool, ch *models.Channel, f Filter, currentUserID string) Action {
	matches := func() bool { return f == nil || f(ch) }
	switch e := ev.(type) {
	case *models.MemberRemovedEvent:
		if e.Member != nil && e.Member.User != nil && e.Member.User.ID == currentUserID {
			if contains {
				return ActionRemove
			}
			return ActionSkip
		}
		if contains {
			return ActionRefresh
		}
		return ActionSkip
	case *models.NotificationRemovedFromChannelEvent:
		if e.Member != nil && e.Member.User != nil && e.Member.User.ID == currentUserID && contains {
			return ActionRemove
		}
		if contains {
			return ActionRefresh
		}
		return ActionSkip

	case *models.ChannelDeletedEvent, *models.NotificationChannelDeletedEvent, *models.ChannelHiddenEvent:
		if contains {
			return ActionRemove
		}
		return ActionSkip

	case *models.ChannelVisibleEvent:
		if !contains && matches() {
			return ActionAdd
		}
		if contains {
			return ActionRefresh
		}
		return ActionSkip

	case *models.ChannelUpdatedEvent:
		if contains && !matches() {
			return ActionRemove
		}
		if contains {
			return ActionRefresh
		}
		if matches() {
			return ActionAdd
		}
		return ActionSkip

	case *models.NewMessageEvent,
		*models.NotificationMessageNewEvent,
		*models.ChannelCreatedEvent,
		*models.MemberAddedEvent,
		*models.MemberUpdatedEvent,
		*models.NotificationAddedToChannelEvent,
		*models.NotificationInviteAcceptedEvent:
		if contains {
			return ActionRefresh
		}
		if matches() {
			return ActionAdd
		}
		return ActionSkip

	case *models.MessageUpdatedEvent,
		*models.MessageDeletedEvent,
		*models.MessageReadEvent,
		*models.NotificationMarkReadEvent,
		*models.ReactionNewEvent,
		*models.ReactionUpdatedEvent,
		*models.ReactionDeletedEvent,
		*models.ChannelTruncatedEvent,
		*models.NotificationChannelTruncatedEvent,
		*models.UserBannedEvent,
		*models.UserUnbannedEvent,
		*models.UserWatchingStartEvent,
		*models.UserWatchingStopEvent:
		if contains {
			return ActionRefresh
		}
		return ActionSkip
	}
	return ActionSkip
}

// State is the reducer for one active query.
type State struct {
	queryID       string
	filter        Filter
	currentUserID string
	resolve       Resolver

	mu   sync.Mutex
	snap *flow.Flow[Snapshot]
}

// NewState builds an empty query state.
func NewState(queryID string, f Filter, currentUserID string, resolve Resolver) *State {
	return &State{
		queryID:       queryID,
		filter:        f,
		currentUserID: currentUserID,
		resolve:       resolve,
		snap:          flow.New(Snapshot{QueryID: queryID}),
	}
}

// QueryID identifies the query.
func (s *State) QueryID() string { return s.queryID }

// Flow exposes the result-list stream.
func (s *State) Flow() *flow.Flow[Snapshot] { return s.snap }

// Snapshot returns the current result list.
func (s *State) Snapshot() Snapshot { return s.snap.Value() }

// SetChannels installs an initial (queried) result list.
func (s *State) SetChannels(channels []*models.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := Snapshot{QueryID: s.queryID, Channels: sortByActivity(channels)}
	s.snap.Set(next)
}

// Apply folds one event into the result list.
func (s *State) Apply(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.snap.Value()

	// whole-list operations first: read counts are not individually
	// event-sourced into the list view, and presence touches every
	// channel the user is a member of
	if _, ok := ev.(*models.MarkAllReadEvent); ok {
		s.snap.Set(s.refreshAll(old))
		return
	}
	if pe, ok := ev.(*models.UserPresenceChangedEvent); ok {
		if pe.User != nil {
			s.snap.Set(s.refreshForUser(old, pe.User.ID))
		}
		return
	}

	cev, ok := ev.(models.CidEvent)
	if !ok {
		return
	}
	cid := cev.Cid()
	contains := old.Contains(cid)
	ch := s.resolve(cid)
	switch Decide(ev, contains, ch, s.filter, s.currentUserID) {
	case ActionAdd:
		if ch == nil {
			return
		}
		next := old
		next.Channels = append(append([]*models.Channel(nil), old.Channels...), ch)
		next.Channels = sortByActivity(next.Channels)
		s.snap.Set(next)
	case ActionRemove:
		next := old
		kept := make([]*models.Channel, 0, len(old.Channels))
		for _, c := range old.Channels {
			if c.CID != cid {
				kept = append(kept, c)
			}
		}
		next.Channels = kept
		s.snap.Set(next)
	case ActionRefresh:
		if ch == nil {
			return
		}
		next := old
		next.Channels = append([]*models.Channel(nil), old.Channels...)
		for i, c := range next.Channels {
			if c.CID == cid {
				next.Channels[i] = ch
			}
		}
		next.Channels = sortByActivity(next.Channels)
		s.snap.Set(next)
	}
}

// refreshAll re-resolves every channel currently in the list.
func (s *State) refreshAll(old Snapshot) Snapshot {
	next := old
	next.Channels = append([]*models.Channel(nil), old.Channels...)
	for i, c := range next.Channels {
		if fresh := s.resolve(c.CID); fresh != nil {
			next.Channels[i] = fresh
		}
	}
	return next
}

// refreshForUser refreshes only channels whose member list contains the
// user, via a reverse index rebuilt from current member lists.
func (s *State) refreshForUser(old Snapshot, userID string) Snapshot {
	byUser := map[string][]int{}
	for i, c := range old.Channels {
		for _, m := range c.Members {
			if m.User != nil {
				byUser[m.User.ID] = append(byUser[m.User.ID], i)
			}
		}
	}
	idxs := byUser[userID]
	if len(idxs) == 0 {
		return old
	}
	next := old
	next.Channels = append([]*models.Channel(nil), old.Channels...)
	for _, i := range idxs {
		if fresh := s.resolve(next.Channels[i].CID); fresh != nil {
			next.Channels[i] = fresh
		}
	}
	return next
}

func sortByActivity(channels []*models.Channel) []*models.Channel {
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].LastMessageAt.After(channels[j].LastMessageAt)
	})
	return channels
}

// Registry tracks the active query states.
type Registry struct {
	mu     sync.Mutex
	states map[string]*State
}

// NewRegistry builds an empty query registry.
func NewRegistry() *Registry {
	return &Registry{states: map[string]*State{}}
}

// Add registers a query state under its id, replacing any previous one.
func (r *Registry) Add(st *State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[st.QueryID()] = st
}

// Remove drops a query state.
func (r *Registry) Remove(queryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, queryID)
}

// Active returns all active query states.
func (r *Registry) Active() []*State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*State, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st)
	}
	return out
}
