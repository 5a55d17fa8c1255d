package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the closed variant type for everything the backend pushes over
// the realtime connection. Concrete kinds live in events.go; components
// type-switch over them and must explicitly ignore kinds they don't
// consume.
type Event interface {
	EventType() string
	At() time.Time
	event()
}

// CidEvent is an event scoped to a single channel.
type CidEvent interface {
	Event
	Cid() string
}

// UserEvent is an event carrying a user reference.
type UserEvent interface {
	Event
	EventUser() *User
}

// MessageCarrier is an event carrying a message payload.
type MessageCarrier interface {
	Event
	EventMessage() *Message
}

// EventBase supplies the creation timestamp shared by every event kind.
type EventBase struct {
	CreatedAt time.Time `json:"created_at"`
}

func (e EventBase) At() time.Time { return e.CreatedAt }
func (e EventBase) event()        {}

// Wire type names.
const (
	TypeConnected    = "connection.connected"
	TypeDisconnected = "connection.disconnected"
	TypeHealthCheck  = "health.check"

	TypeMessageNew     = "message.new"
	TypeMessageUpdated = "message.updated"
	TypeMessageDeleted = "message.deleted"
	TypeMessageRead    = "message.read"

	TypeReactionNew     = "reaction.new"
	TypeReactionUpdated = "reaction.updated"
	TypeReactionDeleted = "reaction.deleted"

	TypeMemberAdded   = "member.added"
	TypeMemberUpdated = "member.updated"
	TypeMemberRemoved = "member.removed"

	TypeChannelCreated   = "channel.created"
	TypeChannelUpdated   = "channel.updated"
	TypeChannelDeleted   = "channel.deleted"
	TypeChannelTruncated = "channel.truncated"
	TypeChannelHidden    = "channel.hidden"
	TypeChannelVisible   = "channel.visible"

	TypeNotificationMessageNew          = "notification.message_new"
	TypeNotificationMarkRead            = "notification.mark_read"
	TypeNotificationMarkAllRead         = "notification.mark_all_read"
	TypeNotificationAddedToChannel      = "notification.added_to_channel"
	TypeNotificationRemovedFromChannel  = "notification.removed_from_channel"
	TypeNotificationInvited             = "notification.invited"
	TypeNotificationInviteAccepted      = "notification.invite_accepted"
	TypeNotificationInviteRejected      = "notification.invite_rejected"
	TypeNotificationChannelDeleted      = "notification.channel_deleted"
	TypeNotificationChannelTruncated    = "notification.channel_truncated"
	TypeNotificationChannelMutesUpdated = "notification.channel_mutes_updated"
	TypeNotificationMutesUpdated        = "notification.mutes_updated"

	TypeTypingStart = "typing.start"
	TypeTypingStop  = "typing.stop"

	TypeUserPresenceChanged = "user.presence.changed"
	TypeUserUpdated         = "user.updated"
	TypeUserDeleted         = "user.deleted"
	TypeUserBanned          = "user.banned"
	TypeUserUnbanned        = "user.unbanned"
	TypeGlobalUserBanned    = "user.global.banned"
	TypeGlobalUserUnbanned  = "user.global.unbanned"

	TypeUserWatchingStart = "user.watching.start"
	TypeUserWatchingStop  = "user.watching.stop"
)

var eventFactories = map[string]func() Event{
	TypeConnected:    func() Event { return &ConnectedEvent{} },
	TypeDisconnected: func() Event { return &DisconnectedEvent{} },
	TypeHealthCheck:  func() Event { return &HealthEvent{} },

	TypeMessageNew:     func() Event { return &NewMessageEvent{} },
	TypeMessageUpdated: func() Event { return &MessageUpdatedEvent{} },
	TypeMessageDeleted: func() Event { return &MessageDeletedEvent{} },
	TypeMessageRead:    func() Event { return &MessageReadEvent{} },

	TypeReactionNew:     func() Event { return &ReactionNewEvent{} },
	TypeReactionUpdated: func() Event { return &ReactionUpdatedEvent{} },
	TypeReactionDeleted: func() Event { return &ReactionDeletedEvent{} },

	TypeMemberAdded:   func() Event { return &MemberAddedEvent{} },
	TypeMemberUpdated: func() Event { return &MemberUpdatedEvent{} },
	TypeMemberRemoved: func() Event { return &MemberRemovedEvent{} },

	TypeChannelCreated:   func() Event { return &ChannelCreatedEvent{} },
	TypeChannelUpdated:   func() Event { return &ChannelUpdatedEvent{} },
	TypeChannelDeleted:   func() Event { return &ChannelDeletedEvent{} },
	TypeChannelTruncated: func() Event { return &ChannelTruncatedEvent{} },
	TypeChannelHidden:    func() Event { return &ChannelHiddenEvent{} },
	TypeChannelVisible:   func() Event { return &ChannelVisibleEvent{} },

	TypeNotificationMessageNew:          func() Event { return &NotificationMessageNewEvent{} },
	TypeNotificationMarkRead:            func() Event { return &NotificationMarkReadEvent{} },
	TypeNotificationMarkAllRead:         func() Event { return &MarkAllReadEvent{} },
	TypeNotificationAddedToChannel:      func() Event { return &NotificationAddedToChannelEvent{} },
	TypeNotificationRemovedFromChannel:  func() Event { return &NotificationRemovedFromChannelEvent{} },
	TypeNotificationInvited:             func() Event { return &NotificationInvitedEvent{} },
	TypeNotificationInviteAccepted:      func() Event { return &NotificationInviteAcceptedEvent{} },
	TypeNotificationInviteRejected:      func() Event { return &NotificationInviteRejectedEvent{} },
	TypeNotificationChannelDeleted:      func() Event { return &NotificationChannelDeletedEvent{} },
	TypeNotificationChannelTruncated:    func() Event { return &NotificationChannelTruncatedEvent{} },
	TypeNotificationChannelMutesUpdated: func() Event { return &NotificationChannelMutesUpdatedEvent{} },
	TypeNotificationMutesUpdated:        func() Event { return &NotificationMutesUpdatedEvent{} },

	TypeTypingStart: func() Event { return &TypingStartEvent{} },
	TypeTypingStop:  func() Event { return &TypingStopEvent{} },

	TypeUserPresenceChanged: func() Event { return &UserPresenceChangedEvent{} },
	TypeUserUpdated:         func() Event { return &UserUpdatedEvent{} },
	TypeUserDeleted:         func() Event { return &UserDeletedEvent{} },
	TypeUserBanned:          func() Event { return &UserBannedEvent{} },
	TypeUserUnbanned:        func() Event { return &UserUnbannedEvent{} },
	TypeGlobalUserBanned:    func() Event { return &GlobalUserBannedEvent{} },
	TypeGlobalUserUnbanned:  func() Event { return &GlobalUserUnbannedEvent{} },

	TypeUserWatchingStart: func() Event { return &UserWatchingStartEvent{} },
	TypeUserWatchingStop:  func() Event { return &UserWatchingStopEvent{} },
}

// DecodeEvent turns a raw wire payload into its concrete event kind. An
// unrecognized type yields an UnknownEvent rather than an error so new
// backend kinds never break the pipeline.
func DecodeEvent(raw []byte) (Event, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	mk, ok := eventFactories[env.Type]
	if !ok {
		ev := &UnknownEvent{Type: env.Type, Raw: append([]byte(nil), raw...)}
		// best-effort timestamp
		_ = json.Unmarshal(raw, &ev.EventBase)
		return ev, nil
	}
	ev := mk()
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return ev, nil
}
