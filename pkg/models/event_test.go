package models

import (
	"testing"
	"time"
)

func TestDecodeEventConcreteKinds(t *testing.T) {
	raw := []byte(`{"type":"message.new","cid":"messaging:general","created_at":"2025-06-01T12:00:00Z","message":{"id":"m1","cid":"messaging:general","text":"hi","user":{"id":"other"}},"watcher_count":3,"total_unread_count":5,"unread_channels":2}`)
	ev, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, ok := ev.(*NewMessageEvent)
	if !ok {
		t.Fatalf("expected *NewMessageEvent, got %T", ev)
	}
	if e.Cid() != "messaging:general" || e.Message.ID != "m1" {
		t.Fatalf("unexpected payload: %+v", e)
	}
	if e.TotalUnreadCount != 5 || e.UnreadChannels != 2 {
		t.Fatalf("unread counters not decoded: %+v", e)
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !e.At().Equal(want) {
		t.Fatalf("expected created_at %v, got %v", want, e.At())
	}
}

func TestDecodeEventUnknownTypeIsNotAnError(t *testing.T) {
	raw := []byte(`{"type":"future.kind","created_at":"2025-06-01T12:00:00Z","whatever":1}`)
	ev, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, ok := ev.(*UnknownEvent)
	if !ok {
		t.Fatalf("expected *UnknownEvent, got %T", ev)
	}
	if u.EventType() != "future.kind" {
		t.Fatalf("unexpected type %q", u.EventType())
	}
	if u.At().IsZero() {
		t.Fatalf("timestamp should be best-effort decoded")
	}
	if len(u.Raw) == 0 {
		t.Fatalf("raw payload must be preserved")
	}
}

func TestDecodeEventInvalidPayload(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{`)); err == nil {
		t.Fatalf("invalid json must error")
	}
	if _, err := DecodeEvent([]byte(`{"type":"message.new","message":5}`)); err == nil {
		t.Fatalf("mistyped payload must error")
	}
}

func TestThreadKey(t *testing.T) {
	parent := &Message{ID: "p1"}
	if parent.ThreadKey() != "p1" {
		t.Fatalf("parent must key on its own id")
	}
	reply := &Message{ID: "r1", ParentID: "p1"}
	if reply.ThreadKey() != "p1" {
		t.Fatalf("reply must key on the parent id")
	}
}

func TestParseCID(t *testing.T) {
	typ, id, err := ParseCID("messaging:general")
	if err != nil || typ != "messaging" || id != "general" {
		t.Fatalf("unexpected parse: %q %q %v", typ, id, err)
	}
	for _, bad := range []string{"", "noseparator", ":leading", "trailing:"} {
		if _, _, err := ParseCID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if FormatCID("messaging", "general") != "messaging:general" {
		t.Fatalf("unexpected cid format")
	}
}
