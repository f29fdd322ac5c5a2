package domain

import (
	"context"
	"sync"
	"time"

	"github.com/hermodbot/hermod/pkg/session"
)

// SessionRef is the context-bound handle to one (user, channel) session.
// It is hydrated synchronously before pre-process hooks run, so readers never
// observe a stale default session. Deleting removes the record entirely; the
// next access recreates a fresh one.
type SessionRef struct {
	mu        sync.Mutex
	store     session.Store
	ttl       time.Duration
	userID    string
	channelID string
	current   *session.Session
}

// NewSessionRef binds a hydrated (possibly nil) session to its store.
func NewSessionRef(store session.Store, userID, channelID string, ttl time.Duration, current *session.Session) *SessionRef {
	return &SessionRef{
		store:     store,
		ttl:       ttl,
		userID:    userID,
		channelID: channelID,
		current:   current,
	}
}

// ensure lazily creates a fresh session after absence or deletion.
// Callers must hold r.mu.
func (r *SessionRef) ensure() *session.Session {
	if r.current == nil {
		r.current = session.New(r.userID, r.channelID)
		r.current.Touch(r.ttl)
	}
	return r.current
}

// Data returns the session's data map. The map is live for the duration of
// the processing invocation; persist changes with Save.
func (r *SessionRef) Data() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensure().Data
}

// CreatedAt returns the session creation time.
func (r *SessionRef) CreatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensure().CreatedAt
}

// UpdatedAt returns the last mutation time.
func (r *SessionRef) UpdatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensure().UpdatedAt
}

// Update merges fields into the session data and bumps UpdatedAt/ExpiresAt.
func (r *SessionRef) Update(fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.ensure()
	for k, v := range fields {
		s.Data[k] = v
	}
	s.Touch(r.ttl)
}

// Save persists the current session state.
func (r *SessionRef) Save(ctx context.Context) error {
	r.mu.Lock()
	s := r.ensure()
	r.mu.Unlock()
	return r.store.Set(ctx, r.userID, r.channelID, s)
}

// Delete removes the session record entirely.
func (r *SessionRef) Delete(ctx context.Context) error {
	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
	return r.store.Delete(ctx, r.userID, r.channelID)
}
