// Package store is the pebble-backed offline cache. It persists channels,
// messages, users and channel-type configs under prefixed keys so that a
// channel's messages form one contiguous, timestamp-ordered key range.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"chatsync/pkg/logger"
	"chatsync/pkg/models"
)

// Key layout:
//
//	channel:<cid>:meta                     channel JSON
//	channel:<cid>:msg:<unix_nano_20>-<id>  message JSON, ordered by creation time
//	msgidx:<id>                            full message key for id lookups
//	user:<id>                              user JSON
//	config:<channel_type>                  channel config JSON
const (
	channelPrefix = "channel:"
	msgIdxPrefix  = "msgidx:"
	userPrefix    = "user:"
	configPrefix  = "config:"
)

// Store is a pebble-backed Repository.
type Store struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) a Pebble database at the given path. cacheSize
// of zero uses pebble's default block cache.
func Open(path string, cacheSize int64) (*Store, error) {
	opts := &pebble.Options{}
	if cacheSize > 0 {
		opts.Cache = pebble.NewCache(cacheSize)
		defer opts.Cache.Unref()
	}
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, opts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying pebble DB.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func (s *Store) Ready() bool { return s != nil && s.db != nil }

func (s *Store) guard(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return ctx.Err()
}

func channelMetaKey(cid string) []byte {
	return []byte(channelPrefix + cid + ":meta")
}

func channelMsgPrefix(cid string) []byte {
	return []byte(channelPrefix + cid + ":msg:")
}

func messageKey(m *models.Message) []byte {
	ts := m.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return []byte(fmt.Sprintf("%s%s:msg:%020d-%s", channelPrefix, m.CID, ts.UTC().UnixNano(), m.ID))
}

// messageKeyTS extracts the creation timestamp encoded in a message key.
func messageKeyTS(key, prefix []byte) (int64, bool) {
	rest := key[len(prefix):]
	i := bytes.IndexByte(rest, '-')
	if i != 20 {
		return 0, false
	}
	n, err := strconv.ParseInt(string(rest[:i]), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SelectChannels returns the cached channels for the given cids. Missing
// cids are simply absent from the result.
func (s *Store) SelectChannels(ctx context.Context, cids []string) ([]*models.Channel, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	out := make([]*models.Channel, 0, len(cids))
	for _, cid := range cids {
		v, closer, err := s.db.Get(channelMetaKey(cid))
		if err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				continue
			}
			return nil, err
		}
		var ch models.Channel
		uerr := json.Unmarshal(v, &ch)
		closer.Close()
		if uerr != nil {
			return nil, fmt.Errorf("invalid channel record %s: %w", cid, uerr)
		}
		out = append(out, &ch)
	}
	return out, nil
}

// SelectMessages returns the cached messages for the given ids, resolved
// through the id index.
func (s *Store) SelectMessages(ctx context.Context, ids []string) ([]*models.Message, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	out := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		key, ok, err := s.lookupMessageKey(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		v, closer, err := s.db.Get(key)
		if err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				continue
			}
			return nil, err
		}
		var m models.Message
		uerr := json.Unmarshal(v, &m)
		closer.Close()
		if uerr != nil {
			return nil, fmt.Errorf("invalid message record %s: %w", id, uerr)
		}
		out = append(out, &m)
	}
	return out, nil
}

// SelectAllChannels returns every cached channel record by walking the
// channel meta keys.
func (s *Store) SelectAllChannels(ctx context.Context) ([]*models.Channel, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	prefix := []byte(channelPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []*models.Channel
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		if !bytes.HasSuffix(key, []byte(":meta")) {
			continue
		}
		var ch models.Channel
		if err := json.Unmarshal(iter.Value(), &ch); err != nil {
			return nil, fmt.Errorf("invalid channel record %s: %w", key, err)
		}
		out = append(out, &ch)
	}
	return out, iter.Error()
}

func (s *Store) lookupMessageKey(id string) ([]byte, bool, error) {
	v, closer, err := s.db.Get([]byte(msgIdxPrefix + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	key := append([]byte(nil), v...)
	closer.Close()
	return key, true, nil
}

// InsertUsers upserts user records in one batch.
func (s *Store) InsertUsers(ctx context.Context, users []*models.User) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, u := range users {
		if u == nil || u.ID == "" {
			continue
		}
		data, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("failed to marshal user %s: %w", u.ID, err)
		}
		if err := b.Set([]byte(userPrefix+u.ID), data, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// InsertChannels upserts channel records and their per-type configs in one
// batch.
func (s *Store) InsertChannels(ctx context.Context, channels []*models.Channel) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	if len(channels) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, ch := range channels {
		if ch == nil || ch.CID == "" {
			continue
		}
		data, err := json.Marshal(ch)
		if err != nil {
			return fmt.Errorf("failed to marshal channel %s: %w", ch.CID, err)
		}
		if err := b.Set(channelMetaKey(ch.CID), data, nil); err != nil {
			return err
		}
		if ch.Type != "" {
			cfg, err := json.Marshal(ch.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config %s: %w", ch.Type, err)
			}
			if err := b.Set([]byte(configPrefix+ch.Type), cfg, nil); err != nil {
				return err
			}
		}
	}
	return b.Commit(pebble.Sync)
}

// InsertMessages upserts message records in one batch. A message whose
// creation timestamp changed since the cached copy gets re-keyed so the
// channel range stays time-ordered.
func (s *Store) InsertMessages(ctx context.Context, messages []*models.Message) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, m := range messages {
		if m == nil || m.ID == "" || m.CID == "" {
			continue
		}
		key := messageKey(m)
		old, ok, err := s.lookupMessageKey(m.ID)
		if err != nil {
			return err
		}
		if ok && !bytes.Equal(old, key) {
			if err := b.Delete(old, nil); err != nil {
				return err
			}
		}
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message %s: %w", m.ID, err)
		}
		if err := b.Set(key, data, nil); err != nil {
			return err
		}
		if err := b.Set([]byte(msgIdxPrefix+m.ID), key, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// DeleteChannelMessagesBefore removes all of a channel's messages created
// strictly before ts. Returns the number pruned via PruneChannelMessagesBefore
// for callers that need it.
func (s *Store) DeleteChannelMessagesBefore(ctx context.Context, cid string, ts time.Time) error {
	_, err := s.PruneChannelMessagesBefore(ctx, cid, ts)
	return err
}

// PruneChannelMessagesBefore is DeleteChannelMessagesBefore with a count,
// used by the retention runner.
func (s *Store) PruneChannelMessagesBefore(ctx context.Context, cid string, ts time.Time) (int, error) {
	if err := s.guard(ctx); err != nil {
		return 0, err
	}
	prefix := channelMsgPrefix(cid)
	cutoff := ts.UTC().UnixNano()
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	b := s.db.NewBatch()
	defer b.Close()
	pruned := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		n, ok := messageKeyTS(key, prefix)
		if !ok || n >= cutoff {
			break
		}
		var m struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(iter.Value(), &m) == nil && m.ID != "" {
			if err := b.Delete([]byte(msgIdxPrefix+m.ID), nil); err != nil {
				return 0, err
			}
		}
		k := append([]byte(nil), key...)
		if err := b.Delete(k, nil); err != nil {
			return 0, err
		}
		pruned++
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	if pruned == 0 {
		return 0, nil
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return pruned, nil
}

// DeleteChannelMessage removes a single message and its index entry.
func (s *Store) DeleteChannelMessage(ctx context.Context, message *models.Message) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	if message == nil || message.ID == "" {
		return nil
	}
	key, ok, err := s.lookupMessageKey(message.ID)
	if err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	if ok {
		if err := b.Delete(key, nil); err != nil {
			return err
		}
	}
	if err := b.Delete([]byte(msgIdxPrefix+message.ID), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// SetChannelDeletedAt marks a channel deleted without evicting it or its
// messages.
func (s *Store) SetChannelDeletedAt(ctx context.Context, cid string, ts time.Time) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	v, closer, err := s.db.Get(channelMetaKey(cid))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil
		}
		return err
	}
	var ch models.Channel
	uerr := json.Unmarshal(v, &ch)
	closer.Close()
	if uerr != nil {
		return fmt.Errorf("invalid channel record %s: %w", cid, uerr)
	}
	t := ts
	ch.DeletedAt = &t
	data, err := json.Marshal(&ch)
	if err != nil {
		return err
	}
	return s.db.Set(channelMetaKey(cid), data, pebble.Sync)
}

// EvictChannel removes a channel, its messages and their index entries.
func (s *Store) EvictChannel(ctx context.Context, cid string) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	prefix := channelMsgPrefix(cid)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	b := s.db.NewBatch()
	defer b.Close()
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(iter.Value(), &m) == nil && m.ID != "" {
			if err := b.Delete([]byte(msgIdxPrefix+m.ID), nil); err != nil {
				return err
			}
		}
		k := append([]byte(nil), iter.Key()...)
		if err := b.Delete(k, nil); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}
	if err := b.Delete(channelMetaKey(cid), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// CacheChannelConfigs returns all cached per-channel-type configs keyed by
// channel type.
func (s *Store) CacheChannelConfigs(ctx context.Context) (map[string]models.Config, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	prefix := []byte(configPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := map[string]models.Config{}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		var cfg models.Config
		if err := json.Unmarshal(iter.Value(), &cfg); err != nil {
			return nil, fmt.Errorf("invalid config record %s: %w", key, err)
		}
		out[string(key[len(prefix):])] = cfg
	}
	return out, iter.Error()
}

// ChannelMessages returns a channel's cached messages in creation order.
func (s *Store) ChannelMessages(ctx context.Context, cid string) ([]*models.Message, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	prefix := channelMsgPrefix(cid)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []*models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid message record %s: %w", iter.Key(), err)
		}
		out = append(out, &m)
	}
	return out, iter.Error()
}

// Channels returns all cached channel ids; the retention runner walks this
// to prune every channel's history.
func (s *Store) Channels(ctx context.Context) ([]string, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	prefix := []byte(channelPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		k := string(key)
		if rest, ok := strings.CutSuffix(k[len(channelPrefix):], ":meta"); ok {
			out = append(out, rest)
		}
	}
	return out, iter.Error()
}
