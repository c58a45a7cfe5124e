package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Abdulkalam0018/roadresq/internal/models"
)

// Memory is a mutex-guarded in-memory implementation of the three store
// interfaces, used by tests and by local development without a Mongo. Each
// mutation holds the lock for its whole critical section, matching the
// atomicity the Mongo repos get from single-document updates.
type Memory struct {
	mu     sync.Mutex
	nextID int
	convs  map[string]*models.Conversation
	byPair map[string]string // pair key -> conversation id
	msgs   map[string][]*models.Message
	users  map[string]*models.User
}

func NewMemory() *Memory {
	return &Memory{
		convs:  make(map[string]*models.Conversation),
		byPair: make(map[string]string),
		msgs:   make(map[string][]*models.Message),
		users:  make(map[string]*models.User),
	}
}

// AddUser seeds the user directory.
func (m *Memory) AddUser(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) genID() string {
	m.nextID++
	return fmt.Sprintf("mem-%06d", m.nextID)
}

func (m *Memory) GetOrCreate(_ context.Context, a, b string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.PairKey(a, b)
	if id, ok := m.byPair[key]; ok {
		return cloneConv(m.convs[id]), nil
	}
	now := time.Now().UTC()
	c := &models.Conversation{
		ID:             m.genID(),
		Participants:   []string{a, b},
		ParticipantKey: key,
		UnreadCount:    map[string]int64{a: 0, b: 0},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.convs[c.ID] = c
	m.byPair[key] = c.ID
	return cloneConv(c), nil
}

func (m *Memory) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConv(c), nil
}

func (m *Memory) ListForUser(_ context.Context, userID string) ([]*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Conversation
	for _, c := range m.convs {
		if c.HasParticipant(userID) {
			out = append(out, cloneConv(c))
		}
	}
	// updated_at descending
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].UpdatedAt.After(out[i].UpdatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *Memory) ApplyMessage(_ context.Context, convID, receiverID, preview string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[convID]
	if !ok {
		return ErrNotFound
	}
	c.LastMessage = preview
	c.UpdatedAt = at
	if c.UnreadCount == nil {
		c.UnreadCount = make(map[string]int64)
	}
	c.UnreadCount[receiverID]++
	return nil
}

func (m *Memory) ResetUnread(_ context.Context, convID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[convID]
	if !ok {
		return ErrNotFound
	}
	if c.UnreadCount == nil {
		c.UnreadCount = make(map[string]int64)
	}
	c.UnreadCount[userID] = 0
	return nil
}

func (m *Memory) Insert(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.ID = m.genID()
	cp := *msg
	m.msgs[msg.ConversationID] = append(m.msgs[msg.ConversationID], &cp)
	return nil
}

func (m *Memory) ListPage(_ context.Context, convID string, page, limit int64) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.msgs[convID]
	end := int64(len(all)) - (page-1)*limit
	if end <= 0 {
		return nil, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]*models.Message, 0, end-start)
	for _, msg := range all[start:end] {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) MarkRead(_ context.Context, convID, receiverID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.msgs[convID] {
		if msg.ReceiverID == receiverID && !msg.Read {
			msg.Read = true
			n++
		}
	}
	return n, nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) FindByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func cloneConv(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.UnreadCount = make(map[string]int64, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		cp.UnreadCount[k] = v
	}
	return &cp
}
