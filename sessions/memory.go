package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/linesmerrill/counsel-relay-api/models"
)

// MemoryStore keeps sessions and messages in process memory. Every write
// holds the store mutex, so the active-session check and the insert are one
// step.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[int64]*models.ChatSession
	messages map[int64][]models.Message

	// Now is the clock used for timestamps
	Now func() time.Time
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*models.ChatSession),
		messages: make(map[int64][]models.Message),
		Now:      time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, userID, counselorID, category string) (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive() {
			return nil, models.ErrDuplicateActiveSession
		}
	}
	m.nextID++
	s := &models.ChatSession{
		ID:          m.nextID,
		UserID:      userID,
		CounselorID: counselorID,
		Category:    category,
		Status:      models.SessionActive,
		CreatedAt:   m.Now().UTC(),
	}
	m.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*models.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) GetActiveForUser(_ context.Context, userID string) (*models.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemoryStore) GetActiveForCounselor(_ context.Context, counselorID string) ([]models.ChatSession, error) {
	return m.filter(func(s *models.ChatSession) bool {
		return s.CounselorID == counselorID && s.IsActive()
	}), nil
}

func (m *MemoryStore) Finish(_ context.Context, id int64) (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !s.IsActive() {
		return nil, models.ErrAlreadyFinished
	}
	now := m.Now().UTC()
	s.Status = models.SessionFinished
	s.FinishedAt = &now
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, sessionID int64, senderID string, content models.Content) (*models.Message, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !s.IsActive() {
		return nil, models.ErrSessionNotActive
	}
	if s.Counterpart(senderID) == "" {
		return nil, fmt.Errorf("sender %s is not part of session %d", senderID, sessionID)
	}
	s.MessageCount++
	msg := content.ToMessage(sessionID, senderID, m.Now().UTC())
	msg.Seq = s.MessageCount
	m.messages[sessionID] = append(m.messages[sessionID], msg)
	return &msg, nil
}

func (m *MemoryStore) ListMessages(_ context.Context, sessionID int64) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, models.ErrNotFound
	}
	out := make([]models.Message, len(m.messages[sessionID]))
	copy(out, m.messages[sessionID])
	return out, nil
}

func (m *MemoryStore) CountActiveByCounselor(_ context.Context, category string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, s := range m.sessions {
		if s.IsActive() && s.Category == category {
			counts[s.CounselorID]++
		}
	}
	return counts, nil
}

func (m *MemoryStore) ListActive(_ context.Context) ([]models.ChatSession, error) {
	return m.filter(func(s *models.ChatSession) bool { return s.IsActive() }), nil
}

func (m *MemoryStore) ListFinished(_ context.Context, limit int) ([]models.ChatSession, error) {
	if limit <= 0 {
		limit = DefaultExportLimit
	}
	finished := m.filter(func(s *models.ChatSession) bool { return !s.IsActive() })
	sort.Slice(finished, func(i, j int) bool {
		a, b := *finished[i].FinishedAt, *finished[j].FinishedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return finished[i].ID > finished[j].ID
	})
	if len(finished) > limit {
		finished = finished[:limit]
	}
	return finished, nil
}

func (m *MemoryStore) CountByStatus(_ context.Context, status models.SessionStatus) (int64, error) {
	return int64(len(m.filter(func(s *models.ChatSession) bool { return s.Status == status }))), nil
}

// filter returns copies of matching sessions ordered by id
func (m *MemoryStore) filter(keep func(*models.ChatSession) bool) []models.ChatSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ChatSession
	for _, s := range m.sessions {
		if keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
