package session

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the reference in-process store. Expired entries are dropped
// lazily on Get and in bulk by Sweep, which the scheduler calls periodically.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func memKey(userID, channelID string) string {
	return userID + "\x00" + channelID
}

func (m *MemoryStore) Get(_ context.Context, userID, channelID string) (*Session, error) {
	key := memKey(userID, channelID)

	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if s.Expired(time.Now()) {
		m.mu.Lock()
		delete(m.sessions, key)
		m.mu.Unlock()
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Set(_ context.Context, userID, channelID string, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[memKey(userID, channelID)] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, memKey(userID, channelID))
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID string) error {
	prefix := userID + "\x00"

	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.sessions {
		if strings.HasPrefix(key, prefix) {
			delete(m.sessions, key)
		}
	}
	return nil
}

// Sweep removes every expired session and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

var _ Store = (*MemoryStore)(nil)
