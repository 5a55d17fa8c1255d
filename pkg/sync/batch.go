package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"chatsync/pkg/models"
	"chatsync/pkg/repo"
)

// Origin tags a batch with its event source.
type Origin int

const (
	// OriginLive marks events delivered by the realtime socket.
	OriginLive Origin = iota
	// OriginResync marks historical events backfilled after reconnect.
	OriginResync
)

func (o Origin) String() string {
	if o == OriginResync {
		return "resync"
	}
	return "live"
}

var batchSeq uint64

// Batch is one ordered unit of work through the four dispatch steps. Not
// persisted; lives for a single dispatch cycle.
type Batch struct {
	ID     uint64
	Origin Origin
	Events []models.Event
}

// NewBatch assigns the next monotonic batch id.
func NewBatch(origin Origin, events []models.Event) Batch {
	return Batch{ID: atomic.AddUint64(&batchSeq, 1), Origin: origin, Events: events}
}

// Accumulator is the in-memory staging area for one batch's storage
// update: entities referenced by the batch are bulk-read once, mutated in
// memory, then bulk-written once per entity kind. Each batch owns a fresh
// accumulator; it is never shared across batches.
type Accumulator struct {
	repo          repo.Repository
	currentUserID string

	users    map[string]*models.User
	channels map[string]*models.Channel
	messages map[string]*models.Message

	// cached keeps the pre-loaded channel copies so the enrich step can
	// merge individual fields without touching storage again.
	cached map[string]*models.Channel
}

// NewAccumulator builds an empty working set over the repository.
func NewAccumulator(r repo.Repository, currentUserID string) *Accumulator {
	return &Accumulator{
		repo:          r,
		currentUserID: currentUserID,
		users:         map[string]*models.User{},
		channels:      map[string]*models.Channel{},
		messages:      map[string]*models.Message{},
		cached:        map[string]*models.Channel{},
	}
}

// Build pre-loads the working set: exactly one bulk read per entity kind
// for everything the batch references.
func (a *Accumulator) Build(ctx context.Context, events []models.Event) error {
	cidSet := map[string]struct{}{}
	msgSet := map[string]struct{}{}
	for _, ev := range events {
		if cev, ok := ev.(models.CidEvent); ok && cev.Cid() != "" {
			cidSet[cev.Cid()] = struct{}{}
		}
		if mc, ok := ev.(models.MessageCarrier); ok {
			if m := mc.EventMessage(); m != nil && m.ID != "" {
				msgSet[m.ID] = struct{}{}
			}
		}
	}
	cids := make([]string, 0, len(cidSet))
	for cid := range cidSet {
		cids = append(cids, cid)
	}
	ids := make([]string, 0, len(msgSet))
	for id := range msgSet {
		ids = append(ids, id)
	}

	channels, err := a.repo.SelectChannels(ctx, cids)
	if err != nil {
		return fmt.Errorf("preload channels: %w", err)
	}
	for _, ch := range channels {
		a.channels[ch.CID] = ch
		a.cached[ch.CID] = ch.Clone()
	}
	messages, err := a.repo.SelectMessages(ctx, ids)
	if err != nil {
		return fmt.Errorf("preload messages: %w", err)
	}
	for _, m := range messages {
		a.messages[m.ID] = m
	}
	return nil
}

// Empty reports whether the working set holds no staged entities.
func (a *Accumulator) Empty() bool {
	return len(a.users) == 0 && len(a.channels) == 0 && len(a.messages) == 0
}

// AddUser stages a user; the first-seen copy wins unless overwrite is
// set.
func (a *Accumulator) AddUser(u *models.User, overwrite bool) {
	if u == nil || u.ID == "" {
		return
	}
	if _, seen := a.users[u.ID]; seen && !overwrite {
		return
	}
	a.users[u.ID] = u
}

// AddChannel stages a channel; the last update for a cid wins.
func (a *Accumulator) AddChannel(ch *models.Channel) {
	if ch == nil || ch.CID == "" {
		return
	}
	a.channels[ch.CID] = ch
}

// Channel returns the staged channel for cid, or nil when the entity is
// unknown locally (expected for legitimately deleted channels).
func (a *Accumulator) Channel(cid string) *models.Channel {
	return a.channels[cid]
}

// Message returns the staged message by id, or nil.
func (a *Accumulator) Message(id string) *models.Message {
	return a.messages[id]
}

// AddMessage stages a message without channel side effects.
func (a *Accumulator) AddMessage(m *models.Message) {
	if m == nil || m.ID == "" {
		return
	}
	a.messages[m.ID] = m
}

// RemoveMessage drops a staged message from the working set. Callers
// that delete a message directly against the repository use this so the
// flush cannot re-insert the pre-loaded copy.
func (a *Accumulator) RemoveMessage(id string) {
	delete(a.messages, id)
}

// RemoveMessagesBefore drops cid's staged messages created strictly
// before ts, mirroring a truncate issued directly against the
// repository.
func (a *Accumulator) RemoveMessagesBefore(cid string, ts time.Time) {
	for id, m := range a.messages {
		if m.CID == cid && m.CreatedAt.Before(ts) {
			delete(a.messages, id)
		}
	}
}

// AddMessageData stages a message and applies the owning channel's side
// effects from local data only: the last-message pointer always follows,
// and a genuinely new message on an unmuted channel that postdates the
// signed-in user's last read bumps that channel's tracked unread count.
func (a *Accumulator) AddMessageData(cid string, m *models.Message, isNewMessage bool) {
	if m == nil || m.ID == "" {
		return
	}
	a.messages[m.ID] = m
	ch := a.channels[cid]
	if ch == nil {
		// unknown channel: the message is still persisted, the channel
		// side effects are skipped
		return
	}
	if m.CreatedAt.After(ch.LastMessageAt) {
		ch.LastMessageAt = m.CreatedAt
	}
	if !isNewMessage || ch.Muted {
		return
	}
	if m.User != nil && m.User.ID == a.currentUserID {
		return
	}
	if r := ch.Read(a.currentUserID); r != nil && m.CreatedAt.After(r.LastRead) {
		r.UnreadMessages++
	}
}

// EnrichFromCache merges fields the wire tends to omit onto staged
// channels: the capability set from the pre-loaded channel copy and the
// per-type config from the config cache. Only the missing field is
// merged; the staged channel is never replaced wholesale, so in-batch
// changes (a removed member, say) cannot be resurrected from the cache.
func (a *Accumulator) EnrichFromCache(ctx context.Context) error {
	var missingConfig bool
	for cid, ch := range a.channels {
		if len(ch.OwnCapabilities) == 0 {
			if prev := a.cached[cid]; prev != nil && len(prev.OwnCapabilities) > 0 {
				ch.OwnCapabilities = append([]string(nil), prev.OwnCapabilities...)
			}
		}
		if ch.Config == (models.Config{}) {
			missingConfig = true
		}
	}
	if !missingConfig {
		return nil
	}
	cached, err := a.repo.CacheChannelConfigs(ctx)
	if err != nil {
		return fmt.Errorf("load cached configs: %w", err)
	}
	for _, ch := range a.channels {
		if ch.Config == (models.Config{}) {
			if cfg, ok := cached[ch.Type]; ok {
				ch.Config = cfg
			}
		}
	}
	return nil
}

// Execute flushes the working set: exactly one bulk write per entity
// kind.
func (a *Accumulator) Execute(ctx context.Context) error {
	if len(a.users) > 0 {
		users := make([]*models.User, 0, len(a.users))
		for _, u := range a.users {
			users = append(users, u)
		}
		if err := a.repo.InsertUsers(ctx, users); err != nil {
			return fmt.Errorf("flush users: %w", err)
		}
	}
	if len(a.channels) > 0 {
		channels := make([]*models.Channel, 0, len(a.channels))
		for _, ch := range a.channels {
			channels = append(channels, ch)
		}
		if err := a.repo.InsertChannels(ctx, channels); err != nil {
			return fmt.Errorf("flush channels: %w", err)
		}
	}
	if len(a.messages) > 0 {
		messages := make([]*models.Message, 0, len(a.messages))
		for _, m := range a.messages {
			messages = append(messages, m)
		}
		if err := a.repo.InsertMessages(ctx, messages); err != nil {
			return fmt.Errorf("flush messages: %w", err)
		}
	}
	return nil
}
