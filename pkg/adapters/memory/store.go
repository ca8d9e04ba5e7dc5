package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/forge/pkg/domain"
)

// SessionStore implements ports.SessionStore in memory.
// Safe for concurrent use.
type SessionStore struct {
	data map[string]domain.Session
	mu   sync.RWMutex
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[string]domain.Session),
	}
}

// Save persists the session in memory.
func (s *SessionStore) Save(ctx context.Context, session domain.Session) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[session.Key] = copied
	return nil
}

// Load retrieves the session from memory.
func (s *SessionStore) Load(ctx context.Context, key string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.data[key]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	// Copy on read so caller can't mutate store state through shared maps
	return session.Clone(), nil
}

// Replace overwrites the payload of a live session.
func (s *SessionStore) Replace(ctx context.Context, key string, payload domain.Payload) error {
	copied := payload.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.data[key]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Payload = copied
	s.data[key] = session
	return nil
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Reap removes sessions created before the cutoff.
func (s *SessionStore) Reap(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, session := range s.data {
		if session.CreatedAt.Before(cutoff) {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
