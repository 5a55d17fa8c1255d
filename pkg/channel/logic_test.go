package channel

import (
	"testing"
	"time"

	"chatsync/pkg/models"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testChannel(me string) *models.Channel {
	return &models.Channel{
		Type: "messaging",
		ID:   "general",
		CID:  "messaging:general",
		Members: []*models.Member{
			{User: &models.User{ID: me}},
			{User: &models.User{ID: "other"}},
		},
		Reads: []*models.Read{
			{User: &models.User{ID: me}, LastRead: base, UnreadMessages: 0},
		},
		LastMessageAt: base,
	}
}

func testMessage(id, author string, at time.Time) *models.Message {
	return &models.Message{
		ID:        id,
		CID:       "messaging:general",
		Text:      "hello",
		User:      &models.User{ID: author},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func loaded(me string) Snapshot {
	return SetChannel(Snapshot{}, testChannel(me))
}

func TestUpsertMessageReplacesInPlace(t *testing.T) {
	s := loaded("me")
	s = UpsertMessage(s, testMessage("m1", "other", base.Add(time.Minute)))
	s = UpsertMessage(s, testMessage("m2", "other", base.Add(2*time.Minute)))

	edited := testMessage("m1", "other", base.Add(time.Minute))
	edited.Text = "edited"
	s = UpsertMessage(s, edited)

	if len(s.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(s.Messages))
	}
	if got := s.Message("m1"); got == nil || got.Text != "edited" {
		t.Fatalf("expected m1 replaced in place, got %+v", got)
	}
	if s.Messages[0].ID != "m1" {
		t.Fatalf("expected m1 to keep its position, got %q first", s.Messages[0].ID)
	}
}

func TestUpsertMessageUninitializedNoop(t *testing.T) {
	s := UpsertMessage(Snapshot{}, testMessage("m1", "other", base))
	if len(s.Messages) != 0 {
		t.Fatalf("uninitialized snapshot must not accumulate messages, got %d", len(s.Messages))
	}
}

func TestNewMessageBumpsUnreadAndLastMessageAt(t *testing.T) {
	s := loaded("me")
	at := base.Add(time.Minute)
	next := NewMessage(s, testMessage("m1", "other", at), "me")

	if !next.Channel.LastMessageAt.Equal(at) {
		t.Fatalf("expected last_message_at %v, got %v", at, next.Channel.LastMessageAt)
	}
	r := next.Channel.Read("me")
	if r == nil || r.UnreadMessages != 1 {
		t.Fatalf("expected unread count 1, got %+v", r)
	}
	// the prior snapshot must not observe the bump
	if prev := s.Channel.Read("me"); prev.UnreadMessages != 0 {
		t.Fatalf("prior snapshot mutated: unread %d", prev.UnreadMessages)
	}
}

func TestNewMessageOwnAuthorDoesNotBumpUnread(t *testing.T) {
	s := loaded("me")
	next := NewMessage(s, testMessage("m1", "me", base.Add(time.Minute)), "me")
	if r := next.Channel.Read("me"); r.UnreadMessages != 0 {
		t.Fatalf("own message must not bump unread, got %d", r.UnreadMessages)
	}
}

func TestNewMessageMutedChannelDoesNotBumpUnread(t *testing.T) {
	s := loaded("me")
	s.Channel.Muted = true
	next := NewMessage(s, testMessage("m1", "other", base.Add(time.Minute)), "me")
	if r := next.Channel.Read("me"); r.UnreadMessages != 0 {
		t.Fatalf("muted channel must not bump unread, got %d", r.UnreadMessages)
	}
	if !next.Channel.LastMessageAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("last_message_at must still advance on muted channels")
	}
}

func TestNewMessagePredatingLastReadDoesNotBumpUnread(t *testing.T) {
	s := loaded("me")
	next := NewMessage(s, testMessage("m1", "other", base.Add(-time.Minute)), "me")
	if r := next.Channel.Read("me"); r.UnreadMessages != 0 {
		t.Fatalf("message predating last read must not bump unread, got %d", r.UnreadMessages)
	}
}

func TestDeleteMessageSoftKeepsTombstone(t *testing.T) {
	s := loaded("me")
	msg := testMessage("m1", "other", base.Add(time.Minute))
	s = UpsertMessage(s, msg)

	next := DeleteMessage(s, msg, false)
	got := next.Message("m1")
	if got == nil {
		t.Fatalf("soft delete must keep a tombstone")
	}
	if got.DeletedAt == nil || !got.DeletedAt.Equal(msg.UpdatedAt) {
		t.Fatalf("expected deleted_at %v, got %v", msg.UpdatedAt, got.DeletedAt)
	}
}

func TestDeleteMessageHardRemoves(t *testing.T) {
	s := loaded("me")
	msg := testMessage("m1", "other", base.Add(time.Minute))
	s = UpsertMessage(s, msg)

	next := DeleteMessage(s, msg, true)
	if next.Message("m1") != nil {
		t.Fatalf("hard delete must remove the message")
	}
}

func TestNormalizeReactionsRebuildsProjections(t *testing.T) {
	msg := testMessage("m1", "other", base)
	msg.LatestReactions = []*models.Reaction{
		{MessageID: "m1", UserID: "other", Type: "like"},
		{MessageID: "m1", UserID: "me", Type: "like"},
		{MessageID: "m1", UserID: "me", Type: "love"},
	}
	// the wire claims an own reaction authored by someone else plus a
	// duplicate of one already in the latest set
	msg.OwnReactions = []*models.Reaction{
		{MessageID: "m1", UserID: "other", Type: "wow"},
		{MessageID: "m1", UserID: "me", Type: "like"},
		{MessageID: "m1", UserID: "me", Type: "wow"},
	}

	out := NormalizeReactions(msg, "me")
	if out.ReactionCounts["like"] != 2 || out.ReactionCounts["love"] != 1 {
		t.Fatalf("unexpected counts: %+v", out.ReactionCounts)
	}
	if len(out.OwnReactions) != 3 {
		t.Fatalf("expected 3 own reactions (like, love, wow), got %d", len(out.OwnReactions))
	}
	for _, r := range out.OwnReactions {
		if r.UserID != "me" {
			t.Fatalf("own reactions must only hold the signed-in user's, got %q", r.UserID)
		}
	}
}

func TestUpsertReadSingleRecordPerUser(t *testing.T) {
	s := loaded("me")
	u := &models.User{ID: "me"}
	s = UpsertRead(s, u, base.Add(time.Minute))
	s = UpsertRead(s, u, base.Add(2*time.Minute))

	n := 0
	for _, r := range s.Channel.Reads {
		if r.User.ID == "me" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected one read record for the user, got %d", n)
	}
	r := s.Channel.Read("me")
	if !r.LastRead.Equal(base.Add(2 * time.Minute)) || r.UnreadMessages != 0 {
		t.Fatalf("unexpected read record: %+v", r)
	}
}

func TestMarkAllReadClearsUnread(t *testing.T) {
	s := loaded("me")
	s = NewMessage(s, testMessage("m1", "other", base.Add(time.Minute)), "me")
	ts := base.Add(2 * time.Minute)
	next := MarkAllRead(s, ts)
	r := next.Channel.Read("me")
	if r.UnreadMessages != 0 || !r.LastRead.Equal(ts) {
		t.Fatalf("unexpected read record after mark-all-read: %+v", r)
	}
}

func TestTypingStartDuplicateSuppressed(t *testing.T) {
	s := loaded("me")
	u := &models.User{ID: "other"}
	s = TypingStart(s, u, base, "")
	again := TypingStart(s, u, base.Add(time.Second), "")
	if rec := again.Typing["other"]; !rec.StartedAt.Equal(base) {
		t.Fatalf("duplicate typing start must be suppressed, started_at %v", rec.StartedAt)
	}

	s = TypingStop(again, "other")
	if _, ok := s.Typing["other"]; ok {
		t.Fatalf("typing stop must remove the record")
	}
}

func TestTypingUsersExcludesCurrentUser(t *testing.T) {
	s := loaded("me")
	s = TypingStart(s, &models.User{ID: "me"}, base, "")
	s = TypingStart(s, &models.User{ID: "other"}, base, "")
	users := s.TypingUsers("me")
	if len(users) != 1 || users[0].ID != "other" {
		t.Fatalf("expected only the other user typing, got %+v", users)
	}
}

func TestTruncateKeepsMessagesAtCutoff(t *testing.T) {
	s := loaded("me")
	cut := base.Add(time.Hour)
	s = UpsertMessage(s, testMessage("old", "other", cut.Add(-time.Second)))
	s = UpsertMessage(s, testMessage("edge", "other", cut))
	s = UpsertMessage(s, testMessage("new", "other", cut.Add(time.Second)))

	next := Truncate(s, cut)
	if next.Message("old") != nil {
		t.Fatalf("strictly older message must be dropped")
	}
	if next.Message("edge") == nil || next.Message("new") == nil {
		t.Fatalf("messages at or after the cutoff must survive")
	}
}

func TestSetHiddenClearHistory(t *testing.T) {
	s := loaded("me")
	s = UpsertMessage(s, testMessage("m1", "other", base))

	hidden := SetHidden(s, true, false)
	if !hidden.Channel.Hidden || len(hidden.Messages) != 1 {
		t.Fatalf("hide without clear must keep messages")
	}

	cleared := SetHidden(s, true, true)
	if len(cleared.Messages) != 0 {
		t.Fatalf("hide with clear must drop messages, got %d", len(cleared.Messages))
	}
}

func TestSetDeletedDropsMessages(t *testing.T) {
	s := loaded("me")
	s = UpsertMessage(s, testMessage("m1", "other", base))
	ts := base.Add(time.Minute)
	next := SetDeleted(s, ts)
	if next.Channel.DeletedAt == nil || !next.Channel.DeletedAt.Equal(ts) {
		t.Fatalf("expected deleted_at %v, got %v", ts, next.Channel.DeletedAt)
	}
	if len(next.Messages) != 0 {
		t.Fatalf("deleted channel must drop cached messages")
	}
}

func TestPresenceChangedRefreshesReferences(t *testing.T) {
	s := loaded("me")
	s = WatchingStart(s, &models.User{ID: "other", Online: false}, 0)

	online := &models.User{ID: "other", Online: true}
	next := PresenceChanged(s, online)

	if m := next.Channel.Member("other"); !m.User.Online {
		t.Fatalf("member reference not refreshed")
	}
	if !next.Watchers[0].Online {
		t.Fatalf("watcher reference not refreshed")
	}
	// prior snapshot keeps the stale reference
	if s.Channel.Member("other").User.Online {
		t.Fatalf("prior snapshot mutated by presence change")
	}
}

func TestWatchingStartStopCounts(t *testing.T) {
	s := loaded("me")
	s = WatchingStart(s, &models.User{ID: "a"}, 0)
	s = WatchingStart(s, &models.User{ID: "b"}, 5)
	if s.WatcherCount != 5 {
		t.Fatalf("event-provided count must win, got %d", s.WatcherCount)
	}
	s = WatchingStart(s, &models.User{ID: "a"}, 0)
	if len(s.Watchers) != 2 {
		t.Fatalf("re-watching must not duplicate, got %d watchers", len(s.Watchers))
	}
	s = WatchingStop(s, "a", -1)
	if len(s.Watchers) != 1 || s.WatcherCount != 1 {
		t.Fatalf("expected one watcher left, got %d (count %d)", len(s.Watchers), s.WatcherCount)
	}
}

func TestSetMemberBanned(t *testing.T) {
	s := loaded("me")
	exp := base.Add(24 * time.Hour)
	next := SetMemberBanned(s, "other", true, &exp)
	m := next.Channel.Member("other")
	if !m.Banned || m.BanExpiry == nil || !m.BanExpiry.Equal(exp) {
		t.Fatalf("unexpected ban record: %+v", m)
	}
	lifted := SetMemberBanned(next, "other", false, nil)
	if lifted.Channel.Member("other").Banned {
		t.Fatalf("ban not lifted")
	}
}

func TestRemoveMember(t *testing.T) {
	s := loaded("me")
	next := RemoveMember(s, "other")
	if next.Channel.Member("other") != nil {
		t.Fatalf("member not removed")
	}
	if len(s.Channel.Members) != 2 {
		t.Fatalf("prior snapshot mutated by member removal")
	}
}
