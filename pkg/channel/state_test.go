package channel

import (
	"testing"
	"time"

	"chatsync/pkg/models"
)

func TestStateApplyIgnoresOtherCid(t *testing.T) {
	st := NewState("messaging:general", "me")
	st.Load(testChannel("me"))

	st.Apply(&models.NewMessageEvent{
		CID:     "messaging:elsewhere",
		Message: testMessage("m1", "other", base),
	})
	if len(st.Snapshot().Messages) != 0 {
		t.Fatalf("event for another cid must be a no-op")
	}
}

func TestStateApplyFoldsEvents(t *testing.T) {
	st := NewState("messaging:general", "me")
	st.Load(testChannel("me"))

	st.Apply(&models.NewMessageEvent{
		EventBase: models.EventBase{CreatedAt: base.Add(time.Minute)},
		CID:       "messaging:general",
		Message:   testMessage("m1", "other", base.Add(time.Minute)),
	})
	st.Apply(&models.MessageReadEvent{
		EventBase: models.EventBase{CreatedAt: base.Add(2 * time.Minute)},
		CID:       "messaging:general",
		User:      &models.User{ID: "me"},
	})

	snap := st.Snapshot()
	if snap.Message("m1") == nil {
		t.Fatalf("message not folded in")
	}
	r := snap.Channel.Read("me")
	if r == nil || r.UnreadMessages != 0 || !r.LastRead.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("read event not folded in: %+v", r)
	}
}

func TestStateApplyConnectionEventsIgnored(t *testing.T) {
	st := NewState("messaging:general", "me")
	st.Load(testChannel("me"))
	before := st.Snapshot()

	st.Apply(&models.ConnectedEvent{Me: &models.User{ID: "me"}})
	st.Apply(&models.HealthEvent{})

	after := st.Snapshot()
	if len(after.Messages) != len(before.Messages) || after.Channel.CID != before.Channel.CID {
		t.Fatalf("connection events must not touch channel snapshots")
	}
}

func TestMutesUpdatedSetsMuteFromList(t *testing.T) {
	st := NewState("messaging:general", "me")
	st.Load(testChannel("me"))

	st.Apply(&models.NotificationChannelMutesUpdatedEvent{
		Me: &models.User{ID: "me", ChannelMutes: []string{"messaging:general"}},
	})
	if !st.Snapshot().Channel.Muted {
		t.Fatalf("channel should be muted after mutes update")
	}

	st.Apply(&models.NotificationChannelMutesUpdatedEvent{Me: &models.User{ID: "me"}})
	if st.Snapshot().Channel.Muted {
		t.Fatalf("channel should be unmuted after empty mutes update")
	}
}

func TestRegistryForCidCreatesOnce(t *testing.T) {
	r := NewRegistry("me")
	a := r.ForCid("messaging:general")
	b := r.ForCid("messaging:general")
	if a != b {
		t.Fatalf("ForCid must return the same state for one cid")
	}
	if _, ok := r.Get("messaging:other"); ok {
		t.Fatalf("Get must not create states")
	}
	if len(r.Active()) != 1 {
		t.Fatalf("expected one active state, got %d", len(r.Active()))
	}
}

func TestRegistryEvictRespectsSubscribers(t *testing.T) {
	r := NewRegistry("me")
	st := r.ForCid("messaging:general")

	_, cancel := st.Flow().Subscribe()
	r.Evict("messaging:general")
	if _, ok := r.Get("messaging:general"); !ok {
		t.Fatalf("state with a live subscriber must not be evicted")
	}

	cancel()
	r.Evict("messaging:general")
	if _, ok := r.Get("messaging:general"); ok {
		t.Fatalf("state without subscribers should be evicted")
	}
}

func TestRegistrySubscribeCancelEvicts(t *testing.T) {
	r := NewRegistry("me")
	snaps, cancelA := r.Subscribe("messaging:general")
	_, cancelB := r.Subscribe("messaging:general")

	select {
	case <-snaps:
	default:
		t.Fatalf("subscription must be primed with the current snapshot")
	}

	cancelA()
	if _, ok := r.Get("messaging:general"); !ok {
		t.Fatalf("state with a remaining observer must not be evicted")
	}

	cancelB()
	if _, ok := r.Get("messaging:general"); ok {
		t.Fatalf("canceling the last observer must evict the state")
	}
}
