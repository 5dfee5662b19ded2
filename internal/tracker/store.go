package tracker

import (
	"sync"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Store persists sync statuses. Consumers depend on this interface so the
// tracker can run against memory in tests and SQLite in production.
type Store interface {
	Save(s models.SyncStatus) error
	Get(id string) (models.SyncStatus, error)
	// Recent returns up to limit statuses, most recently started first.
	Recent(limit int) ([]models.SyncStatus, error)
	Close() error
}

// MemoryStore keeps statuses in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]models.SyncStatus
	order []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.SyncStatus)}
}

func (m *MemoryStore) Save(s models.SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.SyncID]; !ok {
		m.order = append(m.order, s.SyncID)
	}
	m.byID[s.SyncID] = cloneStatus(s)
	return nil
}

func (m *MemoryStore) Get(id string) (models.SyncStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return models.SyncStatus{}, apperr.ErrNotFound
	}
	return cloneStatus(s), nil
}

func (m *MemoryStore) Recent(limit int) ([]models.SyncStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.SyncStatus, 0, min(limit, len(m.order)))
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneStatus(m.byID[m.order[i]]))
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func cloneStatus(s models.SyncStatus) models.SyncStatus {
	s.Errors = append([]string(nil), s.Errors...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		s.CompletedAt = &t
	}
	return s
}
