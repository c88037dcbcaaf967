package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/socialhub/socialhub/backend/go-services/internal/messages"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo is an in-memory repository used when MongoDB is not configured
// and in unit tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*messages.Message
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*messages.Message)}
}

func (m *MemoryRepo) Create(_ context.Context, msg *messages.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	msg.CreatedAt = time.Now().UTC()
	msg.UpdatedAt = msg.CreatedAt
	cp := *msg
	m.store[msg.ID] = &cp
	return nil
}

func (m *MemoryRepo) GetForRecipient(_ context.Context, id, recipient string) (*messages.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if msg, ok := m.store[id]; ok && msg.To == recipient {
		cp := *msg
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) MarkRead(_ context.Context, id, recipient string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.store[id]
	if !ok || msg.To != recipient {
		return false, ErrNotFound
	}
	if msg.ReadAt != nil {
		return false, nil
	}
	msg.ReadAt = &at
	msg.UpdatedAt = at
	return true, nil
}

func (m *MemoryRepo) Conversation(_ context.Context, a, b string) ([]*messages.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*messages.Message{}
	for _, msg := range m.store {
		if (msg.From == a && msg.To == b) || (msg.From == b && msg.To == a) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
