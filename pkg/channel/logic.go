// Package channel holds per-cid state: an immutable snapshot published
// through a flow plus the pure mutation rules that fold events into it.
package channel

import (
	"time"

	"chatsync/pkg/models"
)

// TypingRecord tracks one user currently typing in the channel.
type TypingRecord struct {
	User      *models.User
	StartedAt time.Time
	ParentID  string
}

// Snapshot is the fully-formed channel value observers see. All rule
// functions are pure: they return a new Snapshot and never mutate the
// receiver's slices or maps in place.
type Snapshot struct {
	Channel      *models.Channel
	Messages     []*models.Message
	Watchers     []*models.User
	WatcherCount int
	Typing       map[string]TypingRecord
}

// Initialized reports whether the snapshot has been loaded with channel
// data at least once.
func (s Snapshot) Initialized() bool { return s.Channel != nil }

// TypingUsers is the projection shown in UI: everyone typing except the
// signed-in user.
func (s Snapshot) TypingUsers(currentUserID string) []*models.User {
	out := make([]*models.User, 0, len(s.Typing))
	for id, rec := range s.Typing {
		if id == currentUserID {
			continue
		}
		out = append(out, rec.User)
	}
	return out
}

// Message returns the message with the given id, or nil.
func (s Snapshot) Message(id string) *models.Message {
	for _, m := range s.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (s Snapshot) clone() Snapshot {
	next := s
	if s.Channel != nil {
		next.Channel = s.Channel.Clone()
	}
	next.Messages = append([]*models.Message(nil), s.Messages...)
	next.Watchers = append([]*models.User(nil), s.Watchers...)
	next.Typing = make(map[string]TypingRecord, len(s.Typing))
	for k, v := range s.Typing {
		next.Typing[k] = v
	}
	return next
}

// SetChannel loads or replaces channel data while preserving the locally
// accumulated message list, watchers and typing set.
func SetChannel(s Snapshot, ch *models.Channel) Snapshot {
	next := s.clone()
	next.Channel = ch.Clone()
	return next
}

// UpsertMessage inserts the message or replaces it in place; the list
// never holds two entries for one message id.
func UpsertMessage(s Snapshot, msg *models.Message) Snapshot {
	if msg == nil || !s.Initialized() {
		return s
	}
	next := s.clone()
	for i, m := range next.Messages {
		if m.ID == msg.ID {
			next.Messages[i] = msg.Clone()
			return next
		}
	}
	next.Messages = append(next.Messages, msg.Clone())
	return next
}

// NewMessage applies a freshly delivered message: upsert, bump the
// channel's last-message pointer, and bump the signed-in user's unread
// count when the message is someone else's, postdates their last read and
// the channel is not muted.
func NewMessage(s Snapshot, msg *models.Message, currentUserID string) Snapshot {
	if msg == nil || !s.Initialized() {
		return s
	}
	next := UpsertMessage(s, msg)
	ch := next.Channel
	if msg.CreatedAt.After(ch.LastMessageAt) {
		ch.LastMessageAt = msg.CreatedAt
	}
	if msg.User != nil && msg.User.ID == currentUserID {
		return next
	}
	if ch.Muted {
		return next
	}
	// detach the read record before bumping so prior snapshots stay
	// untouched
	for i, r := range ch.Reads {
		if r.User != nil && r.User.ID == currentUserID && msg.CreatedAt.After(r.LastRead) {
			cp := *r
			cp.UnreadMessages++
			ch.Reads[i] = &cp
		}
	}
	return next
}

// DeleteMessage removes the message on hard delete or keeps a tombstone
// with DeletedAt set otherwise.
func DeleteMessage(s Snapshot, msg *models.Message, hard bool) Snapshot {
	if msg == nil || !s.Initialized() {
		return s
	}
	next := s.clone()
	for i, m := range next.Messages {
		if m.ID != msg.ID {
			continue
		}
		if hard {
			next.Messages = append(next.Messages[:i], next.Messages[i+1:]...)
		} else {
			tomb := msg.Clone()
			if tomb.DeletedAt == nil {
				at := msg.UpdatedAt
				tomb.DeletedAt = &at
			}
			next.Messages[i] = tomb
		}
		return next
	}
	return s
}

// NormalizeReactions rebuilds the reaction projections of msg from its
// full reaction set: per-type counts and the own-reactions subset keyed
// on the signed-in user. Own reactions claimed by the wire for other
// authors are discarded.
func NormalizeReactions(msg *models.Message, currentUserID string) *models.Message {
	if msg == nil {
		return nil
	}
	out := msg.Clone()
	counts := make(map[string]int, len(out.LatestReactions))
	own := make([]*models.Reaction, 0, len(out.OwnReactions))
	seenOwn := map[string]bool{}
	for _, r := range out.LatestReactions {
		counts[r.Type]++
		if r.UserID == currentUserID && !seenOwn[r.Type] {
			own = append(own, r)
			seenOwn[r.Type] = true
		}
	}
	for _, r := range out.OwnReactions {
		if r.UserID == currentUserID && !seenOwn[r.Type] {
			own = append(own, r)
			seenOwn[r.Type] = true
		}
	}
	out.ReactionCounts = counts
	out.OwnReactions = own
	return out
}

// ApplyReaction folds a reaction new/update/delete into the owning
// message via NormalizeReactions.
func ApplyReaction(s Snapshot, msg *models.Message, currentUserID string) Snapshot {
	return UpsertMessage(s, NormalizeReactions(msg, currentUserID))
}

// UpsertMember inserts or replaces the membership record for the member's
// user id.
func UpsertMember(s Snapshot, member *models.Member) Snapshot {
	if member == nil || member.User == nil || !s.Initialized() {
		return s
	}
	next := s.clone()
	ch := next.Channel
	for i, m := range ch.Members {
		if m.User != nil && m.User.ID == member.User.ID {
			ch.Members[i] = member
			return next
		}
	}
	ch.Members = append(ch.Members, member)
	return next
}

// RemoveMember drops the membership record for userID.
func RemoveMember(s Snapshot, userID string) Snapshot {
	if !s.Initialized() {
		return s
	}
	next := s.clone()
	ch := next.Channel
	for i, m := range ch.Members {
		if m.User != nil && m.User.ID == userID {
			ch.Members = append(ch.Members[:i], ch.Members[i+1:]...)
			return next
		}
	}
	return s
}

// UpsertRead replaces or inserts the per-user read record; never more
// than one per user.
func UpsertRead(s Snapshot, user *models.User, lastRead time.Time) Snapshot {
	if user == nil || !s.Initialized() {
		return s
	}
	next := s.clone()
	ch := next.Channel
	rec := &models.Read{User: user, LastRead: lastRead, UnreadMessages: 0}
	for i, r := range ch.Reads {
		if r.User != nil && r.User.ID == user.ID {
			ch.Reads[i] = rec
			return next
		}
	}
	ch.Reads = append(ch.Reads, rec)
	return next
}

// MarkAllRead updates every read record to ts and clears unread counts.
func MarkAllRead(s Snapshot, ts time.Time) Snapshot {
	if !s.Initialized() {
		return s
	}
	next := s.clone()
	ch := next.Channel
	for i, r := range ch.Reads {
		cp := *r
		cp.LastRead = ts
		cp.UnreadMessages = 0
		ch.Reads[i] = &cp
	}
	return next
}

// TypingStart records a typing user; duplicate starts from the same user
// without an intervening stop are suppressed.
func TypingStart(s Snapshot, user *models.User, at time.Time, parentID string) Snapshot {
	if user == nil {
		return s
	}
	if _, already := s.Typing[user.ID]; already {
		return s
	}
	next := s.clone()
	if next.Typing == nil {
		next.Typing = map[string]TypingRecord{}
	}
	next.Typing[user.ID] = TypingRecord{User: user, StartedAt: at, ParentID: parentID}
	return next
}

// TypingStop removes the user's typing record.
func TypingStop(s Snapshot, userID string) Snapshot {
	if _, ok := s.Typing[userID]; !ok {
		return s
	}
	next := s.clone()
	delete(next.Typing, userID)
	return next
}

// SetHidden flips the hidden flag; clearHistory also drops cached
// messages.
func SetHidden(s Snapshot, hidden, clearHistory bool) Snapshot {
	if !s.Initialized() {
		return s
	}
	next := s.clone()
	next.Channel.Hidden = hidden
	if hidden && clearHistory {
		next.Messages = nil
	}
	return next
}

// SetMuted flips the mute flag for the signed-in user.
func SetMuted(s Snapshot, muted bool) Snapshot {
	if !s.Initialized() || s.Channel.Muted == muted {
		return s
	}
	next := s.clone()
	next.Channel.Muted = muted
	return next
}

// Truncate drops messages created strictly before ts.
func Truncate(s Snapshot, ts time.Time) Snapshot {
	if !s.Initialized() {
		return s
	}
	next := s.clone()
	kept := next.Messages[:0:0]
	for _, m := range next.Messages {
		if !m.CreatedAt.Before(ts) {
			kept = append(kept, m)
		}
	}
	next.Messages = kept
	return next
}

// SetDeleted marks the channel deleted.
func SetDeleted(s Snapshot, ts time.Time) Snapshot {
	if !s.Initialized() {
		return s
	}
	next := s.clone()
	at := ts
	next.Channel.DeletedAt = &at
	next.Messages = nil
	return next
}

// PresenceChanged refreshes user references held in members, watchers and
// reads.
func PresenceChanged(s Snapshot, user *models.User) Snapshot {
	if user == nil || !s.Initialized() {
		return s
	}
	next := s.clone()
	ch := next.Channel
	for i, m := range ch.Members {
		if m.User != nil && m.User.ID == user.ID {
			cp := *m
			cp.User = user
			ch.Members[i] = &cp
		}
	}
	for i, w := range next.Watchers {
		if w.ID == user.ID {
			next.Watchers[i] = user
		}
	}
	for i, r := range ch.Reads {
		if r.User != nil && r.User.ID == user.ID {
			cp := *r
			cp.User = user
			ch.Reads[i] = &cp
		}
	}
	return next
}

// SetMemberBanned flips the ban flag on the member record for userID.
func SetMemberBanned(s Snapshot, userID string, banned bool, expiry *time.Time) Snapshot {
	if !s.Initialized() {
		return s
	}
	next := s.clone()
	ch := next.Channel
	for i, m := range ch.Members {
		if m.User != nil && m.User.ID == userID {
			cp := *m
			cp.Banned = banned
			cp.BanExpiry = expiry
			ch.Members[i] = &cp
			return next
		}
	}
	return s
}

// WatchingStart adds a watcher; WatchingStop removes one. Counts come
// from the event when provided.
func WatchingStart(s Snapshot, user *models.User, count int) Snapshot {
	if user == nil {
		return s
	}
	next := s.clone()
	found := false
	for i, w := range next.Watchers {
		if w.ID == user.ID {
			next.Watchers[i] = user
			found = true
			break
		}
	}
	if !found {
		next.Watchers = append(next.Watchers, user)
	}
	if count > 0 {
		next.WatcherCount = count
	} else {
		next.WatcherCount = len(next.Watchers)
	}
	return next
}

func WatchingStop(s Snapshot, userID string, count int) Snapshot {
	next := s.clone()
	for i, w := range next.Watchers {
		if w.ID == userID {
			next.Watchers = append(next.Watchers[:i], next.Watchers[i+1:]...)
			break
		}
	}
	if count >= 0 {
		next.WatcherCount = count
	} else {
		next.WatcherCount = len(next.Watchers)
	}
	return next
}
