package identity

import (
	"context"
	"sync"
	"time"

	"github.com/linesmerrill/counsel-relay-api/models"
)

// MemoryStore keeps identities in process memory. The uniqueness checks run
// under one mutex, which gives Insert the same conflict semantics as the
// unique indexes of the mongo store.
type MemoryStore struct {
	mu       sync.RWMutex
	byRealID map[string]*models.PartyIdentity
	byHandle map[string]string
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byRealID: make(map[string]*models.PartyIdentity),
		byHandle: make(map[string]string),
	}
}

func (m *MemoryStore) FindByRealID(_ context.Context, realID string) (*models.PartyIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.byRealID[realID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *identity
	return &cp, nil
}

func (m *MemoryStore) FindByHandle(_ context.Context, handle string) (*models.PartyIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	realID, ok := m.byHandle[handle]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *m.byRealID[realID]
	return &cp, nil
}

func (m *MemoryStore) Insert(_ context.Context, identity models.PartyIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRealID[identity.RealID]; ok {
		return ErrConflict
	}
	if _, ok := m.byHandle[identity.Handle]; ok {
		return ErrConflict
	}
	m.byRealID[identity.RealID] = &identity
	m.byHandle[identity.Handle] = identity.RealID
	return nil
}

func (m *MemoryStore) update(realID string, fn func(*models.PartyIdentity)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byRealID[realID]
	if !ok {
		return models.ErrNotFound
	}
	fn(identity)
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) SetBlocked(_ context.Context, realID string, blocked bool) error {
	return m.update(realID, func(i *models.PartyIdentity) { i.Blocked = blocked })
}

func (m *MemoryStore) SetState(_ context.Context, realID string, state models.ConversationState) error {
	return m.update(realID, func(i *models.PartyIdentity) { i.State = state })
}

func (m *MemoryStore) SetLanguage(_ context.Context, realID, language string) error {
	return m.update(realID, func(i *models.PartyIdentity) { i.Language = language })
}

func (m *MemoryStore) CountBlocked(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, identity := range m.byRealID {
		if identity.Blocked {
			n++
		}
	}
	return n, nil
}
