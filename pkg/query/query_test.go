package query

import (
	"testing"
	"time"

	"chatsync/pkg/models"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func member(id string) *models.Member {
	return &models.Member{User: &models.User{ID: id}}
}

func queryChannel(cid string, lastMessageAt time.Time, memberIDs ...string) *models.Channel {
	ch := &models.Channel{CID: cid, Type: "messaging", LastMessageAt: lastMessageAt}
	for _, id := range memberIDs {
		ch.Members = append(ch.Members, member(id))
	}
	return ch
}

func resolverFor(chans ...*models.Channel) Resolver {
	byCid := map[string]*models.Channel{}
	for _, ch := range chans {
		byCid[ch.CID] = ch
	}
	return func(cid string) *models.Channel { return byCid[cid] }
}

func TestDecideTable(t *testing.T) {
	f := MembersContain("me")
	mine := queryChannel("messaging:a", base, "me")
	theirs := queryChannel("messaging:b", base, "other")

	cases := []struct {
		name     string
		ev       models.Event
		contains bool
		ch       *models.Channel
		want     Action
	}{
		{"new message adds matching channel", &models.NewMessageEvent{CID: "messaging:a"}, false, mine, ActionAdd},
		{"new message refreshes listed channel", &models.NewMessageEvent{CID: "messaging:a"}, true, mine, ActionRefresh},
		{"new message skips non-matching channel", &models.NewMessageEvent{CID: "messaging:b"}, false, theirs, ActionSkip},
		{"channel deleted removes listed", &models.ChannelDeletedEvent{CID: "messaging:a"}, true, mine, ActionRemove},
		{"channel deleted skips unlisted", &models.ChannelDeletedEvent{CID: "messaging:b"}, false, theirs, ActionSkip},
		{"channel hidden removes listed", &models.ChannelHiddenEvent{CID: "messaging:a"}, true, mine, ActionRemove},
		{"channel visible adds matching", &models.ChannelVisibleEvent{CID: "messaging:a"}, false, mine, ActionAdd},
		{"update refreshes while still matching", &models.ChannelUpdatedEvent{CID: "messaging:a", Channel: mine}, true, mine, ActionRefresh},
		{"update removes once filter fails", &models.ChannelUpdatedEvent{CID: "messaging:b", Channel: theirs}, true, theirs, ActionRemove},
		{"my removal removes listed", &models.MemberRemovedEvent{CID: "messaging:a", Member: member("me")}, true, mine, ActionRemove},
		{"someone else's removal refreshes", &models.MemberRemovedEvent{CID: "messaging:a", Member: member("other")}, true, mine, ActionRefresh},
		{"reaction refreshes listed", &models.ReactionNewEvent{CID: "messaging:a"}, true, mine, ActionRefresh},
		{"reaction skips unlisted", &models.ReactionNewEvent{CID: "messaging:a"}, false, mine, ActionSkip},
	}
	for _, tc := range cases {
		if got := Decide(tc.ev, tc.contains, tc.ch, f, "me"); got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestApplyAddSortsByActivity(t *testing.T) {
	older := queryChannel("messaging:old", base, "me")
	newer := queryChannel("messaging:new", base.Add(time.Hour), "me")
	st := NewState("q1", MembersContain("me"), "me", resolverFor(older, newer))
	st.SetChannels([]*models.Channel{older})

	st.Apply(&models.ChannelVisibleEvent{CID: "messaging:new"})

	snap := st.Snapshot()
	if len(snap.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(snap.Channels))
	}
	if snap.Channels[0].CID != "messaging:new" {
		t.Fatalf("expected most recently active channel first, got %q", snap.Channels[0].CID)
	}
}

func TestApplyMyRemovalDropsChannel(t *testing.T) {
	ch := queryChannel("messaging:a", base, "me")
	st := NewState("q1", MembersContain("me"), "me", resolverFor(ch))
	st.SetChannels([]*models.Channel{ch})

	st.Apply(&models.MemberRemovedEvent{CID: "messaging:a", Member: member("me")})
	if st.Snapshot().Contains("messaging:a") {
		t.Fatalf("channel must leave the list when the user is removed")
	}
}

func TestApplyUnresolvableAddIsSkipped(t *testing.T) {
	st := NewState("q1", nil, "me", resolverFor())
	st.Apply(&models.NewMessageEvent{CID: "messaging:ghost"})
	if len(st.Snapshot().Channels) != 0 {
		t.Fatalf("unresolvable channel must not be added")
	}
}

func TestApplyMarkAllReadRefreshesWholeList(t *testing.T) {
	stale := queryChannel("messaging:a", base, "me")
	fresh := queryChannel("messaging:a", base, "me")
	fresh.Name = "renamed"
	st := NewState("q1", MembersContain("me"), "me", resolverFor(fresh))
	st.SetChannels([]*models.Channel{stale})

	st.Apply(&models.MarkAllReadEvent{User: &models.User{ID: "me"}})
	if got := st.Snapshot().Channels[0].Name; got != "renamed" {
		t.Fatalf("mark-all-read must re-resolve every channel, got name %q", got)
	}
}

func TestApplyPresenceRefreshesMemberChannelsOnly(t *testing.T) {
	withUser := queryChannel("messaging:a", base, "me", "buddy")
	without := queryChannel("messaging:b", base, "me")
	freshA := queryChannel("messaging:a", base, "me", "buddy")
	freshA.Name = "fresh-a"
	freshB := queryChannel("messaging:b", base, "me")
	freshB.Name = "fresh-b"

	st := NewState("q1", MembersContain("me"), "me", resolverFor(freshA, freshB))
	st.SetChannels([]*models.Channel{withUser, without})

	st.Apply(&models.UserPresenceChangedEvent{User: &models.User{ID: "buddy", Online: true}})

	snap := st.Snapshot()
	for _, ch := range snap.Channels {
		switch ch.CID {
		case "messaging:a":
			if ch.Name != "fresh-a" {
				t.Fatalf("channel with the user must be refreshed")
			}
		case "messaging:b":
			if ch.Name == "fresh-b" {
				t.Fatalf("channel without the user must not be refreshed")
			}
		}
	}
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()
	st := NewState("q1", nil, "me", resolverFor())
	r.Add(st)
	if len(r.Active()) != 1 {
		t.Fatalf("expected 1 active query, got %d", len(r.Active()))
	}
	r.Remove("q1")
	if len(r.Active()) != 0 {
		t.Fatalf("expected 0 active queries after remove, got %d", len(r.Active()))
	}
}
