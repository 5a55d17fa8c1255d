package sync

import (
	"context"
	"fmt"
	"time"

	"chatsync/pkg/channel"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/repo"
)

// applyStorageRules folds one event into the accumulator's working set or
// issues the direct repository deletes that have no staged representation
// (hard delete, truncate). Unknown-entity references are skipped, not
// errors.
func applyStorageRules(ctx context.Context, a *Accumulator, r repo.Repository, me string, ev models.Event) error {
	switch e := ev.(type) {
	case *models.NewMessageEvent:
		stageMessage(a, e.CID, e.Message, true)
	case *models.NotificationMessageNewEvent:
		if e.Channel != nil {
			a.AddChannel(e.Channel)
		}
		stageMessage(a, e.CID, e.Message, true)
	case *models.MessageUpdatedEvent:
		stageMessage(a, e.CID, e.Message, false)
	case *models.MessageDeletedEvent:
		if e.Message == nil {
			return nil
		}
		if e.Hard {
			// the pre-load staged this message; unstage it so the
			// flush cannot re-insert what we are about to delete
			a.RemoveMessage(e.Message.ID)
			return r.DeleteChannelMessage(ctx, e.Message)
		}
		tomb := e.Message.Clone()
		if tomb.DeletedAt == nil {
			at := e.CreatedAt
			tomb.DeletedAt = &at
		}
		a.AddMessage(tomb)

	case *models.ReactionNewEvent:
		stageMessage(a, e.CID, channel.NormalizeReactions(e.Message, me), false)
	case *models.ReactionUpdatedEvent:
		stageMessage(a, e.CID, channel.NormalizeReactions(e.Message, me), false)
	case *models.ReactionDeletedEvent:
		stageMessage(a, e.CID, channel.NormalizeReactions(e.Message, me), false)

	case *models.MemberAddedEvent:
		stageMemberUpsert(a, e.CID, e.Member)
	case *models.MemberUpdatedEvent:
		stageMemberUpsert(a, e.CID, e.Member)
	case *models.MemberRemovedEvent:
		stageMemberRemove(a, e.CID, e.Member)
	case *models.NotificationAddedToChannelEvent:
		if e.Channel != nil {
			a.AddChannel(e.Channel)
		}
		stageMemberUpsert(a, e.CID, e.Member)
	case *models.NotificationInviteAcceptedEvent:
		stageMemberUpsert(a, e.CID, e.Member)
	case *models.NotificationRemovedFromChannelEvent:
		stageMemberRemove(a, e.CID, e.Member)
	case *models.NotificationInviteRejectedEvent:
		stageMemberRemove(a, e.CID, e.Member)

	case *models.ChannelCreatedEvent:
		if e.Channel != nil {
			a.AddChannel(e.Channel)
		}
	case *models.ChannelUpdatedEvent:
		if e.Channel != nil {
			a.AddChannel(e.Channel)
		}
	case *models.ChannelDeletedEvent:
		return stageChannelDeleted(ctx, a, r, e.CID, e.CreatedAt)
	case *models.NotificationChannelDeletedEvent:
		return stageChannelDeleted(ctx, a, r, e.CID, e.CreatedAt)
	case *models.ChannelTruncatedEvent:
		a.RemoveMessagesBefore(e.CID, e.CreatedAt)
		return r.DeleteChannelMessagesBefore(ctx, e.CID, e.CreatedAt)
	case *models.NotificationChannelTruncatedEvent:
		a.RemoveMessagesBefore(e.CID, e.CreatedAt)
		return r.DeleteChannelMessagesBefore(ctx, e.CID, e.CreatedAt)
	case *models.ChannelHiddenEvent:
		ch := a.Channel(e.CID)
		if ch == nil {
			logger.Debug("storage_skip_unknown_channel", "cid", e.CID, "event", ev.EventType())
			return nil
		}
		ch.Hidden = true
		if e.ClearHistory {
			a.RemoveMessagesBefore(e.CID, e.CreatedAt)
			return r.DeleteChannelMessagesBefore(ctx, e.CID, e.CreatedAt)
		}
	case *models.ChannelVisibleEvent:
		if ch := a.Channel(e.CID); ch != nil {
			ch.Hidden = false
		}

	case *models.MessageReadEvent:
		stageRead(a, e.CID, e.User, e)
	case *models.NotificationMarkReadEvent:
		stageRead(a, e.CID, e.User, e)
	case *models.MarkAllReadEvent:
		// the event names no channel, so it pre-loads none; pull every
		// cached channel into the working set before clearing reads
		all, err := r.SelectAllChannels(ctx)
		if err != nil {
			return err
		}
		for _, ch := range all {
			if a.Channel(ch.CID) == nil {
				a.AddChannel(ch)
			}
		}
		for _, ch := range a.channels {
			for _, rec := range ch.Reads {
				rec.LastRead = e.CreatedAt
				rec.UnreadMessages = 0
			}
		}

	case *models.UserUpdatedEvent:
		a.AddUser(e.User, true)
	case *models.UserPresenceChangedEvent:
		a.AddUser(e.User, true)
	case *models.GlobalUserBannedEvent:
		if e.User != nil {
			u := e.User.Clone()
			u.Banned = true
			a.AddUser(u, true)
		}
	case *models.GlobalUserUnbannedEvent:
		if e.User != nil {
			u := e.User.Clone()
			u.Banned = false
			a.AddUser(u, true)
		}
	case *models.UserBannedEvent:
		stageMemberBan(a, e.CID, e.User, true)
	case *models.UserUnbannedEvent:
		stageMemberBan(a, e.CID, e.User, false)
	case *models.NotificationChannelMutesUpdatedEvent:
		if e.Me == nil {
			return nil
		}
		for _, ch := range a.channels {
			ch.Muted = e.Me.HasMuted(ch.CID)
		}
		a.AddUser(e.Me, true)
	case *models.NotificationMutesUpdatedEvent:
		a.AddUser(e.Me, true)

	case *models.ConnectedEvent,
		*models.DisconnectedEvent,
		*models.HealthEvent,
		*models.TypingStartEvent,
		*models.TypingStopEvent,
		*models.UserWatchingStartEvent,
		*models.UserWatchingStopEvent,
		*models.UserDeletedEvent,
		*models.NotificationInvitedEvent,
		*models.UnknownEvent:
		// no storage effect
	}
	return nil
}

// stageChannelDeleted marks the deletion on the staged copy when the
// channel was pre-loaded, so the flush persists the timestamp instead of
// overwriting it. Channels outside the working set get the direct write.
func stageChannelDeleted(ctx context.Context, a *Accumulator, r repo.Repository, cid string, ts time.Time) error {
	if ch := a.Channel(cid); ch != nil {
		at := ts
		ch.DeletedAt = &at
		return nil
	}
	return r.SetChannelDeletedAt(ctx, cid, ts)
}

func stageMessage(a *Accumulator, cid string, m *models.Message, isNew bool) {
	if m == nil {
		return
	}
	msg := m.Clone()
	msg.SyncStatus = models.SyncStatusSynced
	if msg.User != nil {
		a.AddUser(msg.User, false)
	}
	a.AddMessageData(cid, msg, isNew)
}

func stageMemberUpsert(a *Accumulator, cid string, member *models.Member) {
	if member == nil || member.User == nil {
		return
	}
	a.AddUser(member.User, false)
	ch := a.Channel(cid)
	if ch == nil {
		logger.Debug("storage_skip_unknown_channel", "cid", cid, "event", "member_upsert")
		return
	}
	for i, m := range ch.Members {
		if m.User != nil && m.User.ID == member.User.ID {
			ch.Members[i] = member
			return
		}
	}
	ch.Members = append(ch.Members, member)
}

func stageMemberRemove(a *Accumulator, cid string, member *models.Member) {
	if member == nil || member.User == nil {
		return
	}
	ch := a.Channel(cid)
	if ch == nil {
		return
	}
	for i, m := range ch.Members {
		if m.User != nil && m.User.ID == member.User.ID {
			ch.Members = append(ch.Members[:i], ch.Members[i+1:]...)
			return
		}
	}
}

func stageRead(a *Accumulator, cid string, user *models.User, ev models.Event) {
	if user == nil {
		return
	}
	a.AddUser(user, false)
	ch := a.Channel(cid)
	if ch == nil {
		logger.Debug("storage_skip_unknown_channel", "cid", cid, "event", ev.EventType())
		return
	}
	rec := &models.Read{User: user, LastRead: ev.At(), UnreadMessages: 0}
	for i, r := range ch.Reads {
		if r.User != nil && r.User.ID == user.ID {
			ch.Reads[i] = rec
			return
		}
	}
	ch.Reads = append(ch.Reads, rec)
}

func stageMemberBan(a *Accumulator, cid string, user *models.User, banned bool) {
	if user == nil {
		return
	}
	ch := a.Channel(cid)
	if ch == nil {
		return
	}
	for _, m := range ch.Members {
		if m.User != nil && m.User.ID == user.ID {
			m.Banned = banned
		}
	}
}

// updateStorage is dispatch step three: build the working set, fold every
// event through the storage rule table, enrich from cache, then flush.
// A single failing event is logged and skipped so it cannot poison the
// rest of the batch.
func updateStorage(ctx context.Context, r repo.Repository, me string, b Batch) error {
	a := NewAccumulator(r, me)
	if err := a.Build(ctx, b.Events); err != nil {
		return fmt.Errorf("batch %d: %w", b.ID, err)
	}
	for _, ev := range b.Events {
		if err := applyStorageRules(ctx, a, r, me, ev); err != nil {
			logger.Warn("storage_rule_failed", "batch", b.ID, "event", ev.EventType(), "error", err)
		}
	}
	if err := a.EnrichFromCache(ctx); err != nil {
		logger.Warn("storage_enrich_failed", "batch", b.ID, "error", err)
	}
	if err := a.Execute(ctx); err != nil {
		return fmt.Errorf("batch %d: %w", b.ID, err)
	}
	return nil
}
