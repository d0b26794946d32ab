package session

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/niaga/pkg/errorsx"
)

// Store persists sessions between turns. Callers must treat load-mutate-save
// as a critical section per session ID; Locker provides the serialization.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

// MemoryStore is the in-process Store used by tests and single-node runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errorsx.Newf(errorsx.ReasonSessionNotFound, "session not found: %s", id)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := s.Clone()
	clone.UpdatedAt = time.Now()
	m.sessions[s.ID] = clone
	return nil
}

// GetOrCreate loads a session or initializes a new one bound to an agent.
func GetOrCreate(ctx context.Context, store Store, id, agentID, channel string) (*Session, error) {
	s, err := store.Get(ctx, id)
	if err == nil {
		return s, nil
	}
	if !errorsx.HasReason(err, errorsx.ReasonSessionNotFound) {
		return nil, err
	}
	s = &Session{ID: id, AgentID: agentID, Channel: channel}
	if err := store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
