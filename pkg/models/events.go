package models

import "time"

// Connection lifecycle.

// ConnectedEvent reports a successful connection with the signed-in user
// ("me") and the backend-issued connection id.
type ConnectedEvent struct {
	EventBase
	Me           *User  `json:"me"`
	ConnectionID string `json:"connection_id"`
}

func (*ConnectedEvent) EventType() string { return TypeConnected }
func (e *ConnectedEvent) EventUser() *User { return e.Me }

type DisconnectedEvent struct {
	EventBase
	Reason string `json:"reason,omitempty"`
}

func (*DisconnectedEvent) EventType() string { return TypeDisconnected }

type HealthEvent struct {
	EventBase
	ConnectionID string `json:"connection_id,omitempty"`
}

func (*HealthEvent) EventType() string { return TypeHealthCheck }

// UnknownEvent preserves payloads whose type is not recognized.
type UnknownEvent struct {
	EventBase
	Type string `json:"type"`
	Raw  []byte `json:"-"`
}

func (e *UnknownEvent) EventType() string { return e.Type }

// Messages.

type NewMessageEvent struct {
	EventBase
	CID              string   `json:"cid"`
	Message          *Message `json:"message"`
	WatcherCount     int      `json:"watcher_count,omitempty"`
	TotalUnreadCount int      `json:"total_unread_count,omitempty"`
	UnreadChannels   int      `json:"unread_channels,omitempty"`
}

func (*NewMessageEvent) EventType() string { return TypeMessageNew }
func (e *NewMessageEvent) Cid() string { return e.CID }
func (e *NewMessageEvent) EventMessage() *Message { return e.Message }

type MessageUpdatedEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Message *Message `json:"message"`
	User    *User    `json:"user,omitempty"`
}

func (*MessageUpdatedEvent) EventType() string { return TypeMessageUpdated }
func (e *MessageUpdatedEvent) Cid() string { return e.CID }
func (e *MessageUpdatedEvent) EventMessage() *Message { return e.Message }

type MessageDeletedEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Message *Message `json:"message"`
	// Hard requests removal from storage instead of a tombstone.
	Hard bool `json:"hard,omitempty"`
}

func (*MessageDeletedEvent) EventType() string { return TypeMessageDeleted }
func (e *MessageDeletedEvent) Cid() string { return e.CID }
func (e *MessageDeletedEvent) EventMessage() *Message { return e.Message }

type MessageReadEvent struct {
	EventBase
	CID  string `json:"cid"`
	User *User  `json:"user"`
}

func (*MessageReadEvent) EventType() string { return TypeMessageRead }
func (e *MessageReadEvent) Cid() string { return e.CID }
func (e *MessageReadEvent) EventUser() *User { return e.User }

// Reactions.

type ReactionNewEvent struct {
	EventBase
	CID      string    `json:"cid"`
	Message  *Message  `json:"message"`
	Reaction *Reaction `json:"reaction"`
}

func (*ReactionNewEvent) EventType() string { return TypeReactionNew }
func (e *ReactionNewEvent) Cid() string { return e.CID }
func (e *ReactionNewEvent) EventMessage() *Message { return e.Message }

type ReactionUpdatedEvent struct {
	EventBase
	CID      string    `json:"cid"`
	Message  *Message  `json:"message"`
	Reaction *Reaction `json:"reaction"`
}

func (*ReactionUpdatedEvent) EventType() string { return TypeReactionUpdated }
func (e *ReactionUpdatedEvent) Cid() string { return e.CID }
func (e *ReactionUpdatedEvent) EventMessage() *Message { return e.Message }

type ReactionDeletedEvent struct {
	EventBase
	CID      string    `json:"cid"`
	Message  *Message  `json:"message"`
	Reaction *Reaction `json:"reaction"`
}

func (*ReactionDeletedEvent) EventType() string { return TypeReactionDeleted }
func (e *ReactionDeletedEvent) Cid() string { return e.CID }
func (e *ReactionDeletedEvent) EventMessage() *Message { return e.Message }

// Membership.

type MemberAddedEvent struct {
	EventBase
	CID    string  `json:"cid"`
	Member *Member `json:"member"`
}

func (*MemberAddedEvent) EventType() string { return TypeMemberAdded }
func (e *MemberAddedEvent) Cid() string { return e.CID }
func (e *MemberAddedEvent) EventUser() *User {
	if e.Member == nil {
		return nil
	}
	return e.Member.User
}

type MemberUpdatedEvent struct {
	EventBase
	CID    string  `json:"cid"`
	Member *Member `json:"member"`
}

func (*MemberUpdatedEvent) EventType() string { return TypeMemberUpdated }
func (e *MemberUpdatedEvent) Cid() string { return e.CID }
func (e *MemberUpdatedEvent) EventUser() *User {
	if e.Member == nil {
		return nil
	}
	return e.Member.User
}

type MemberRemovedEvent struct {
	EventBase
	CID    string  `json:"cid"`
	Member *Member `json:"member"`
}

func (*MemberRemovedEvent) EventType() string { return TypeMemberRemoved }
func (e *MemberRemovedEvent) Cid() string { return e.CID }
func (e *MemberRemovedEvent) EventUser() *User {
	if e.Member == nil {
		return nil
	}
	return e.Member.User
}

// Channel lifecycle.

type ChannelCreatedEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Channel *Channel `json:"channel"`
}

func (*ChannelCreatedEvent) EventType() string { return TypeChannelCreated }
func (e *ChannelCreatedEvent) Cid() string { return e.CID }

type ChannelUpdatedEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Channel *Channel `json:"channel"`
	Message *Message `json:"message,omitempty"`
}

func (*ChannelUpdatedEvent) EventType() string { return TypeChannelUpdated }
func (e *ChannelUpdatedEvent) Cid() string { return e.CID }

type ChannelDeletedEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Channel *Channel `json:"channel,omitempty"`
}

func (*ChannelDeletedEvent) EventType() string { return TypeChannelDeleted }
func (e *ChannelDeletedEvent) Cid() string { return e.CID }

// ChannelTruncatedEvent removes channel history before its creation
// timestamp.
type ChannelTruncatedEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Channel *Channel `json:"channel,omitempty"`
}

func (*ChannelTruncatedEvent) EventType() string { return TypeChannelTruncated }
func (e *ChannelTruncatedEvent) Cid() string { return e.CID }

type ChannelHiddenEvent struct {
	EventBase
	CID          string `json:"cid"`
	User         *User  `json:"user,omitempty"`
	ClearHistory bool   `json:"clear_history,omitempty"`
}

func (*ChannelHiddenEvent) EventType() string { return TypeChannelHidden }
func (e *ChannelHiddenEvent) Cid() string { return e.CID }

type ChannelVisibleEvent struct {
	EventBase
	CID  string `json:"cid"`
	User *User  `json:"user,omitempty"`
}

func (*ChannelVisibleEvent) EventType() string { return TypeChannelVisible }
func (e *ChannelVisibleEvent) Cid() string { return e.CID }

// Notifications.

type NotificationMessageNewEvent struct {
	EventBase
	CID              string   `json:"cid"`
	Channel          *Channel `json:"channel,omitempty"`
	Message          *Message `json:"message"`
	TotalUnreadCount int      `json:"total_unread_count,omitempty"`
	UnreadChannels   int      `json:"unread_channels,omitempty"`
}

func (*NotificationMessageNewEvent) EventType() string { return TypeNotificationMessageNew }
func (e *NotificationMessageNewEvent) Cid() string { return e.CID }
func (e *NotificationMessageNewEvent) EventMessage() *Message { return e.Message }

type NotificationMarkReadEvent struct {
	EventBase
	CID              string `json:"cid"`
	User             *User  `json:"user"`
	TotalUnreadCount int    `json:"total_unread_count,omitempty"`
	UnreadChannels   int    `json:"unread_channels,omitempty"`
}

func (*NotificationMarkReadEvent) EventType() string { return TypeNotificationMarkRead }
func (e *NotificationMarkReadEvent) Cid() string { return e.CID }
func (e *NotificationMarkReadEvent) EventUser() *User { return e.User }

// MarkAllReadEvent fans out to every active channel state.
type MarkAllReadEvent struct {
	EventBase
	User             *User `json:"user"`
	TotalUnreadCount int   `json:"total_unread_count"`
	UnreadChannels   int   `json:"unread_channels"`
}

func (*MarkAllReadEvent) EventType() string { return TypeNotificationMarkAllRead }
func (e *MarkAllReadEvent) EventUser() *User { return e.User }

type NotificationAddedToChannelEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Channel *Channel `json:"channel,omitempty"`
	Member  *Member  `json:"member,omitempty"`
}

func (*NotificationAddedToChannelEvent) EventType() string { return TypeNotificationAddedToChannel }
func (e *NotificationAddedToChannelEvent) Cid() string { return e.CID }

type NotificationRemovedFromChannelEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Channel *Channel `json:"channel,omitempty"`
	Member  *Member  `json:"member,omitempty"`
}

func (*NotificationRemovedFromChannelEvent) EventType() string {
	return TypeNotificationRemovedFromChannel
}
func (e *NotificationRemovedFromChannelEvent) Cid() string { return e.CID }

type NotificationInvitedEvent struct {
	EventBase
	CID    string  `json:"cid"`
	Member *Member `json:"member,omitempty"`
}

func (*NotificationInvitedEvent) EventType() string { return TypeNotificationInvited }
func (e *NotificationInvitedEvent) Cid() string { return e.CID }

type NotificationInviteAcceptedEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Channel *Channel `json:"channel,omitempty"`
	Member  *Member  `json:"member,omitempty"`
}

func (*NotificationInviteAcceptedEvent) EventType() string { return TypeNotificationInviteAccepted }
func (e *NotificationInviteAcceptedEvent) Cid() string { return e.CID }

type NotificationInviteRejectedEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Channel *Channel `json:"channel,omitempty"`
	Member  *Member  `json:"member,omitempty"`
}

func (*NotificationInviteRejectedEvent) EventType() string { return TypeNotificationInviteRejected }
func (e *NotificationInviteRejectedEvent) Cid() string { return e.CID }

type NotificationChannelDeletedEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Channel *Channel `json:"channel,omitempty"`
}

func (*NotificationChannelDeletedEvent) EventType() string { return TypeNotificationChannelDeleted }
func (e *NotificationChannelDeletedEvent) Cid() string { return e.CID }

type NotificationChannelTruncatedEvent struct {
	EventBase
	CID     string   `json:"cid"`
	Channel *Channel `json:"channel,omitempty"`
}

func (*NotificationChannelTruncatedEvent) EventType() string {
	return TypeNotificationChannelTruncated
}
func (e *NotificationChannelTruncatedEvent) Cid() string { return e.CID }

// NotificationChannelMutesUpdatedEvent carries the signed-in user's new
// mute list; routed to every active channel state.
type NotificationChannelMutesUpdatedEvent struct {
	EventBase
	Me *User `json:"me"`
}

func (*NotificationChannelMutesUpdatedEvent) EventType() string {
	return TypeNotificationChannelMutesUpdated
}
func (e *NotificationChannelMutesUpdatedEvent) EventUser() *User { return e.Me }

type NotificationMutesUpdatedEvent struct {
	EventBase
	Me *User `json:"me"`
}

func (*NotificationMutesUpdatedEvent) EventType() string { return TypeNotificationMutesUpdated }
func (e *NotificationMutesUpdatedEvent) EventUser() *User { return e.Me }

// Typing.

type TypingStartEvent struct {
	EventBase
	CID      string `json:"cid"`
	User     *User  `json:"user"`
	ParentID string `json:"parent_id,omitempty"`
}

func (*TypingStartEvent) EventType() string { return TypeTypingStart }
func (e *TypingStartEvent) Cid() string { return e.CID }
func (e *TypingStartEvent) EventUser() *User { return e.User }

type TypingStopEvent struct {
	EventBase
	CID      string `json:"cid"`
	User     *User  `json:"user"`
	ParentID string `json:"parent_id,omitempty"`
}

func (*TypingStopEvent) EventType() string { return TypeTypingStop }
func (e *TypingStopEvent) Cid() string { return e.CID }
func (e *TypingStopEvent) EventUser() *User { return e.User }

// Users.

type UserPresenceChangedEvent struct {
	EventBase
	User *User `json:"user"`
}

func (*UserPresenceChangedEvent) EventType() string { return TypeUserPresenceChanged }
func (e *UserPresenceChangedEvent) EventUser() *User { return e.User }

type UserUpdatedEvent struct {
	EventBase
	User *User `json:"user"`
}

func (*UserUpdatedEvent) EventType() string { return TypeUserUpdated }
func (e *UserUpdatedEvent) EventUser() *User { return e.User }

type UserDeletedEvent struct {
	EventBase
	User *User `json:"user"`
}

func (*UserDeletedEvent) EventType() string { return TypeUserDeleted }
func (e *UserDeletedEvent) EventUser() *User { return e.User }

type UserBannedEvent struct {
	EventBase
	CID    string     `json:"cid"`
	User   *User      `json:"user"`
	Expiry *time.Time `json:"expiration,omitempty"`
}

func (*UserBannedEvent) EventType() string { return TypeUserBanned }
func (e *UserBannedEvent) Cid() string { return e.CID }
func (e *UserBannedEvent) EventUser() *User { return e.User }

type UserUnbannedEvent struct {
	EventBase
	CID  string `json:"cid"`
	User *User  `json:"user"`
}

func (*UserUnbannedEvent) EventType() string { return TypeUserUnbanned }
func (e *UserUnbannedEvent) Cid() string { return e.CID }
func (e *UserUnbannedEvent) EventUser() *User { return e.User }

type GlobalUserBannedEvent struct {
	EventBase
	User *User `json:"user"`
}

func (*GlobalUserBannedEvent) EventType() string { return TypeGlobalUserBanned }
func (e *GlobalUserBannedEvent) EventUser() *User { return e.User }

type GlobalUserUnbannedEvent struct {
	EventBase
	User *User `json:"user"`
}

func (*GlobalUserUnbannedEvent) EventType() string { return TypeGlobalUserUnbanned }
func (e *GlobalUserUnbannedEvent) EventUser() *User { return e.User }

// Watchers.

type UserWatchingStartEvent struct {
	EventBase
	CID          string `json:"cid"`
	User         *User  `json:"user"`
	WatcherCount int    `json:"watcher_count,omitempty"`
}

func (*UserWatchingStartEvent) EventType() string { return TypeUserWatchingStart }
func (e *UserWatchingStartEvent) Cid() string { return e.CID }
func (e *UserWatchingStartEvent) EventUser() *User { return e.User }

type UserWatchingStopEvent struct {
	EventBase
	CID          string `json:"cid"`
	User         *User  `json:"user"`
	WatcherCount int    `json:"watcher_count,omitempty"`
}

func (*UserWatchingStopEvent) EventType() string { return TypeUserWatchingStop }
func (e *UserWatchingStopEvent) Cid() string { return e.CID }
func (e *UserWatchingStopEvent) EventUser() *User { return e.User }
