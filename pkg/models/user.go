package models

import "time"

// User is the mutable profile of a chat participant. Users are shared by
// reference-by-id across channels and messages; conflicting updates inside
// one batch resolve last-write-wins in batch arrival order.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Image      string    `json:"image,omitempty"`
	Role       string    `json:"role,omitempty"`
	Online     bool      `json:"online,omitempty"`
	Banned     bool      `json:"banned,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
	LastActive time.Time `json:"last_active,omitempty"`

	// TotalUnreadCount / UnreadChannels are only meaningful on the
	// currently signed-in user ("me") as reported by the backend.
	TotalUnreadCount int `json:"total_unread_count,omitempty"`
	UnreadChannels   int `json:"unread_channels,omitempty"`

	// ChannelMutes lists cids muted by this user; populated for "me".
	ChannelMutes []string `json:"channel_mutes,omitempty"`
}

// Clone returns a shallow copy safe for independent mutation of scalar
// fields. Mute list is copied.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if len(u.ChannelMutes) > 0 {
		cp.ChannelMutes = append([]string(nil), u.ChannelMutes...)
	}
	return &cp
}

// HasMuted reports whether cid is in the user's mute list.
func (u *User) HasMuted(cid string) bool {
	if u == nil {
		return false
	}
	for _, m := range u.ChannelMutes {
		if m == cid {
			return true
		}
	}
	return false
}
