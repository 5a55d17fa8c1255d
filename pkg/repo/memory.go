package repo

import (
	"context"
	"sync"
	"time"

	"chatsync/pkg/models"
)

// Memory is a map-backed Repository for tests and ephemeral sessions.
type Memory struct {
	mu       sync.Mutex
	channels map[string]*models.Channel
	messages map[string]*models.Message
	users    map[string]*models.User
	configs  map[string]models.Config
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		channels: map[string]*models.Channel{},
		messages: map[string]*models.Message{},
		users:    map[string]*models.User{},
		configs:  map[string]models.Config{},
	}
}

func (m *Memory) SelectChannels(_ context.Context, cids []string) ([]*models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Channel, 0, len(cids))
	for _, cid := range cids {
		if ch, ok := m.channels[cid]; ok {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

func (m *Memory) SelectMessages(_ context.Context, ids []string) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := m.messages[id]; ok {
			out = append(out, msg.Clone())
		}
	}
	return out, nil
}

func (m *Memory) SelectAllChannels(_ context.Context) ([]*models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch.Clone())
	}
	return out, nil
}

func (m *Memory) InsertUsers(_ context.Context, users []*models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		if u != nil && u.ID != "" {
			m.users[u.ID] = u.Clone()
		}
	}
	return nil
}

func (m *Memory) InsertChannels(_ context.Context, channels []*models.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range channels {
		if c != nil && c.CID != "" {
			m.channels[c.CID] = c.Clone()
			if c.Type != "" {
				m.configs[c.Type] = c.Config
			}
		}
	}
	return nil
}

func (m *Memory) InsertMessages(_ context.Context, messages []*models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		if msg != nil && msg.ID != "" {
			m.messages[msg.ID] = msg.Clone()
		}
	}
	return nil
}

func (m *Memory) DeleteChannelMessagesBefore(_ context.Context, cid string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, msg := range m.messages {
		if msg.CID == cid && msg.CreatedAt.Before(ts) {
			delete(m.messages, id)
		}
	}
	return nil
}

func (m *Memory) DeleteChannelMessage(_ context.Context, message *models.Message) error {
	if message == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, message.ID)
	return nil
}

func (m *Memory) SetChannelDeletedAt(_ context.Context, cid string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[cid]; ok {
		t := ts
		ch.DeletedAt = &t
	}
	return nil
}

func (m *Memory) EvictChannel(_ context.Context, cid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, cid)
	for id, msg := range m.messages {
		if msg.CID == cid {
			delete(m.messages, id)
		}
	}
	return nil
}

func (m *Memory) CacheChannelConfigs(_ context.Context) (map[string]models.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Config, len(m.configs))
	for k, v := range m.configs {
		out[k] = v
	}
	return out, nil
}

// Message returns the stored message by id (test helper).
func (m *Memory) Message(id string) *models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		return msg.Clone()
	}
	return nil
}

// Channel returns the stored channel by cid (test helper).
func (m *Memory) Channel(cid string) *models.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[cid]; ok {
		return ch.Clone()
	}
	return nil
}

// User returns the stored user by id (test helper).
func (m *Memory) User(id string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.Clone()
	}
	return nil
}

// MessageCount reports how many messages are cached for cid.
func (m *Memory) MessageCount(cid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.CID == cid {
			n++
		}
	}
	return n
}
