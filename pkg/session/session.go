// Package session defines per-(user, channel) conversational state and the
// pluggable store contract the dispatcher persists it through.
package session

import (
	"context"
	"time"
)

// Session is one conversation's persisted state, uniquely identified by the
// (UserID, ChannelID) pair. Data is free-form; mutate it only through the
// dispatcher's session helpers, never by direct external write.
type Session struct {
	UserID    string         `json:"user_id"`
	ChannelID string         `json:"channel_id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// New creates a fresh session for the pair.
func New(userID, channelID string) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		ChannelID: channelID,
		Data:      make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Touch bumps UpdatedAt and, when a TTL is configured, pushes ExpiresAt out.
func (s *Session) Touch(ttl time.Duration) {
	now := time.Now()
	s.UpdatedAt = now
	if ttl > 0 {
		expires := now.Add(ttl)
		s.ExpiresAt = &expires
	}
}

// Clone returns a deep-enough copy so stores never alias caller-held maps.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Data = make(map[string]any, len(s.Data))
	for k, v := range s.Data {
		out.Data[k] = v
	}
	if s.ExpiresAt != nil {
		expires := *s.ExpiresAt
		out.ExpiresAt = &expires
	}
	return &out
}

// Store is the session persistence contract. Get returns (nil, nil) when no
// live session exists for the pair; expired records count as absent.
type Store interface {
	Get(ctx context.Context, userID, channelID string) (*Session, error)
	Set(ctx context.Context, userID, channelID string, s *Session) error
	Delete(ctx context.Context, userID, channelID string) error
	// Clear removes all sessions for a user across channels.
	Clear(ctx context.Context, userID string) error
}
