// Package repo defines the offline-storage contract the sync engine
// depends on. Implementations: pebble-backed store (pkg/store) and the
// in-memory Memory used by tests and ephemeral sessions.
package repo

import (
	"context"
	"time"

	"chatsync/pkg/models"
)

// Repository is key-based CRUD over persisted chat entities. All calls may
// suspend on I/O; everything above this boundary is synchronous.
type Repository interface {
	// SelectChannels returns the cached channels for the given cids.
	// Missing cids are simply absent from the result, not errors.
	SelectChannels(ctx context.Context, cids []string) ([]*models.Channel, error)
	// SelectMessages returns the cached messages for the given ids.
	SelectMessages(ctx context.Context, ids []string) ([]*models.Message, error)
	// SelectAllChannels returns every cached channel. Whole-cache
	// operations (mark-all-read) use it; hot paths should not.
	SelectAllChannels(ctx context.Context) ([]*models.Channel, error)

	InsertUsers(ctx context.Context, users []*models.User) error
	InsertChannels(ctx context.Context, channels []*models.Channel) error
	InsertMessages(ctx context.Context, messages []*models.Message) error

	// DeleteChannelMessagesBefore removes all of a channel's messages
	// created strictly before ts.
	DeleteChannelMessagesBefore(ctx context.Context, cid string, ts time.Time) error
	// DeleteChannelMessage removes a single message.
	DeleteChannelMessage(ctx context.Context, message *models.Message) error
	// SetChannelDeletedAt marks a channel deleted without evicting it.
	SetChannelDeletedAt(ctx context.Context, cid string, ts time.Time) error
	// EvictChannel removes a channel and its messages from the cache.
	EvictChannel(ctx context.Context, cid string) error

	// CacheChannelConfigs returns all cached per-channel-type configs
	// keyed by channel type.
	CacheChannelConfigs(ctx context.Context) (map[string]models.Config, error)
}
