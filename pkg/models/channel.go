package models

import (
	"fmt"
	"strings"
	"time"
)

// FormatCID builds a composite channel identifier "type:id".
func FormatCID(channelType, channelID string) string {
	return channelType + ":" + channelID
}

// ParseCID splits a composite channel identifier into type and id.
func ParseCID(cid string) (channelType, channelID string, err error) {
	i := strings.IndexByte(cid, ':')
	if i <= 0 || i == len(cid)-1 {
		return "", "", fmt.Errorf("invalid cid %q", cid)
	}
	return cid[:i], cid[i+1:], nil
}

// Member records a user's membership in a channel.
type Member struct {
	User      *User      `json:"user"`
	Role      string     `json:"role,omitempty"`
	Banned    bool       `json:"banned,omitempty"`
	BanExpiry *time.Time `json:"ban_expiry,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// Read is a per-user read record; a channel holds at most one per user.
type Read struct {
	User           *User     `json:"user"`
	LastRead       time.Time `json:"last_read"`
	UnreadMessages int       `json:"unread_messages"`
}

// Config holds per-channel-type configuration delivered by the backend and
// cached locally so reconnects don't need to re-fetch it.
type Config struct {
	Name             string    `json:"name,omitempty"`
	TypingEvents     bool      `json:"typing_events"`
	ReadEvents       bool      `json:"read_events"`
	Reactions        bool      `json:"reactions"`
	Replies          bool      `json:"replies"`
	Mutes            bool      `json:"mutes"`
	MessageRetention string    `json:"message_retention,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// Channel is the persisted/cached channel entity. In-memory mutation goes
// through the single reducer that owns the cid.
type Channel struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	CID  string `json:"cid"`

	Name      string `json:"name,omitempty"`
	Image     string `json:"image,omitempty"`
	CreatedBy *User  `json:"created_by,omitempty"`

	Members []*Member `json:"members,omitempty"`
	Reads   []*Read   `json:"reads,omitempty"`

	LastMessageAt time.Time  `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`

	Hidden bool `json:"hidden,omitempty"`
	Muted  bool `json:"muted,omitempty"`

	// OwnCapabilities is the capability set granted to the signed-in user
	// on this channel (send-message, read-events, ...).
	OwnCapabilities []string `json:"own_capabilities,omitempty"`

	Config    Config         `json:"config,omitempty"`
	ExtraData map[string]any `json:"extra_data,omitempty"`
}

// HasCapability reports whether the signed-in user holds cap on the channel.
func (c *Channel) HasCapability(cap string) bool {
	for _, v := range c.OwnCapabilities {
		if v == cap {
			return true
		}
	}
	return false
}

// Member returns the membership record for userID, or nil.
func (c *Channel) Member(userID string) *Member {
	for _, m := range c.Members {
		if m.User != nil && m.User.ID == userID {
			return m
		}
	}
	return nil
}

// Read returns the read record for userID, or nil.
func (c *Channel) Read(userID string) *Read {
	for _, r := range c.Reads {
		if r.User != nil && r.User.ID == userID {
			return r
		}
	}
	return nil
}

// Clone returns a copy with detached member, read and capability slices.
// Pointed-to users and messages are shared.
func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Members = append([]*Member(nil), c.Members...)
	cp.Reads = append([]*Read(nil), c.Reads...)
	cp.OwnCapabilities = append([]string(nil), c.OwnCapabilities...)
	if c.ExtraData != nil {
		cp.ExtraData = make(map[string]any, len(c.ExtraData))
		for k, v := range c.ExtraData {
			cp.ExtraData[k] = v
		}
	}
	return &cp
}

// Capability names checked by the sync engine.
const (
	CapReadEvents  = "read-events"
	CapSendMessage = "send-message"
)
