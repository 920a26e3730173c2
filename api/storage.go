package api

import (
	"sync"

	"danyak/types"
)

// SessionStorage persists the signed-in session between processes.
// Load returns (nil, nil) when nothing is stored.
type SessionStorage interface {
	Load() (*types.Session, error)
	Save(session *types.Session) error
	Clear() error
}

type MemoryStorage struct {
	mu      sync.Mutex
	session *types.Session
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone(), nil
}

func (m *MemoryStorage) Save(session *types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session.Clone()
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
