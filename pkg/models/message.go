package models

import "time"

// SyncStatus tracks local-vs-server agreement for a message held in the
// offline cache.
type SyncStatus int

const (
	// SyncStatusSynced means the last known server response matches the
	// local copy.
	SyncStatusSynced SyncStatus = iota
	// SyncStatusPending means the message was composed locally and not
	// yet handed to the transport.
	SyncStatusPending
	// SyncStatusInProgress means a send is in flight.
	SyncStatusInProgress
	// SyncStatusNeeded means the local copy diverged and must be re-sent.
	SyncStatusNeeded
	// SyncStatusFailed means the server permanently rejected the message.
	SyncStatusFailed
)

func (s SyncStatus) String() string {
	switch s {
	case SyncStatusSynced:
		return "synced"
	case SyncStatusPending:
		return "pending"
	case SyncStatusInProgress:
		return "in_progress"
	case SyncStatusNeeded:
		return "sync_needed"
	case SyncStatusFailed:
		return "failed"
	}
	return "unknown"
}

// Reaction is keyed by (message id, user id, reaction type).
type Reaction struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	User      *User     `json:"user,omitempty"`
	Score     int       `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Message belongs to exactly one channel; ParentID non-empty marks it as a
// thread reply.
type Message struct {
	ID       string `json:"id"`
	CID      string `json:"cid"`
	Text     string `json:"text,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	User     *User  `json:"user,omitempty"`

	ReactionCounts  map[string]int `json:"reaction_counts,omitempty"`
	LatestReactions []*Reaction    `json:"latest_reactions,omitempty"`
	// OwnReactions only ever contains reactions authored by the signed-in
	// user; enforced at merge time, never trusted from the wire.
	OwnReactions []*Reaction `json:"own_reactions,omitempty"`

	ReplyCount int        `json:"reply_count,omitempty"`
	Shadowed   bool       `json:"shadowed,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`

	SyncStatus SyncStatus `json:"sync_status"`
}

// ThreadKey returns the id under which thread state for this message is
// held: the parent id for replies, the message's own id for parents.
func (m *Message) ThreadKey() string {
	if m.ParentID != "" {
		return m.ParentID
	}
	return m.ID
}

// Clone returns a copy whose reaction slices and count map are detached
// from the receiver.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	if m.ReactionCounts != nil {
		cp.ReactionCounts = make(map[string]int, len(m.ReactionCounts))
		for k, v := range m.ReactionCounts {
			cp.ReactionCounts[k] = v
		}
	}
	cp.LatestReactions = append([]*Reaction(nil), m.LatestReactions...)
	cp.OwnReactions = append([]*Reaction(nil), m.OwnReactions...)
	return &cp
}
