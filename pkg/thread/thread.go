// Package thread holds per-parent-message reply state, mirroring the
// channel reducer but scoped to one thread.
package thread

import (
	"sync"

	"chatsync/pkg/channel"
	"chatsync/pkg/flow"
	"chatsync/pkg/models"
)

// Snapshot is the observable reply list for one parent message.
type Snapshot struct {
	ParentID string
	Replies  []*models.Message
}

// Reply returns the reply with the given id, or nil.
func (s Snapshot) Reply(id string) *models.Message {
	for _, m := range s.Replies {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// State is the single writer for one thread's reply list.
type State struct {
	parentID      string
	currentUserID string

	mu   sync.Mutex
	snap *flow.Flow[Snapshot]
}

// NewState builds an empty thread state.
func NewState(parentID, currentUserID string) *State {
	return &State{
		parentID:      parentID,
		currentUserID: currentUserID,
		snap:          flow.New(Snapshot{ParentID: parentID}),
	}
}

// ParentID returns the owning parent message id.
func (s *State) ParentID() string { return s.parentID }

// Flow exposes the reply-list stream.
func (s *State) Flow() *flow.Flow[Snapshot] { return s.snap }

// Snapshot returns the current value.
func (s *State) Snapshot() Snapshot { return s.snap.Value() }

// Apply folds a message-carrying event into the reply list. Events whose
// message routes to a different thread are no-ops.
func (s *State) Apply(ev models.Event) {
	mc, ok := ev.(models.MessageCarrier)
	if !ok {
		return
	}
	msg := mc.EventMessage()
	if msg == nil || msg.ThreadKey() != s.parentID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.snap.Value()
	next := old
	switch ev.(type) {
	case *models.NewMessageEvent, *models.NotificationMessageNewEvent, *models.MessageUpdatedEvent:
		next = upsert(old, msg)
	case *models.MessageDeletedEvent:
		del := ev.(*models.MessageDeletedEvent)
		next = remove(old, msg, del.Hard)
	case *models.ReactionNewEvent, *models.ReactionUpdatedEvent, *models.ReactionDeletedEvent:
		next = upsert(old, channel.NormalizeReactions(msg, s.currentUserID))
	default:
		return
	}
	s.snap.Set(next)
}

func upsert(s Snapshot, msg *models.Message) Snapshot {
	next := s
	next.Replies = append([]*models.Message(nil), s.Replies...)
	for i, m := range next.Replies {
		if m.ID == msg.ID {
			next.Replies[i] = msg.Clone()
			return next
		}
	}
	next.Replies = append(next.Replies, msg.Clone())
	return next
}

func remove(s Snapshot, msg *models.Message, hard bool) Snapshot {
	next := s
	next.Replies = append([]*models.Message(nil), s.Replies...)
	for i, m := range next.Replies {
		if m.ID != msg.ID {
			continue
		}
		if hard {
			next.Replies = append(next.Replies[:i], next.Replies[i+1:]...)
		} else {
			tomb := msg.Clone()
			if tomb.DeletedAt == nil {
				at := msg.UpdatedAt
				tomb.DeletedAt = &at
			}
			next.Replies[i] = tomb
		}
		return next
	}
	return s
}

// Registry owns active thread states keyed by parent message id.
type Registry struct {
	currentUserID string

	mu     sync.Mutex
	states map[string]*State
}

// NewRegistry builds an empty registry for the session user.
func NewRegistry(currentUserID string) *Registry {
	return &Registry{currentUserID: currentUserID, states: map[string]*State{}}
}

// ForParent returns the state for a parent message id, creating it on
// first reference.
func (r *Registry) ForParent(parentID string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[parentID]
	if !ok {
		st = NewState(parentID, r.currentUserID)
		r.states[parentID] = st
	}
	return st
}

// Get returns the state only if already active.
func (r *Registry) Get(parentID string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[parentID]
	return st, ok
}

// Active returns all active thread states.
func (r *Registry) Active() []*State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*State, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st)
	}
	return out
}
