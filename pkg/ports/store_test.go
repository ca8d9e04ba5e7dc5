package ports_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/ports"
)

// MockStore is a minimal map-backed SessionStore used to exercise the contract suite itself.
type MockStore struct {
	mu   sync.Mutex
	data map[string]domain.Session
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string]domain.Session)}
}

func (m *MockStore) Save(ctx context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.Key] = s.Clone()
	return nil
}

func (m *MockStore) Load(ctx context.Context, key string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[key]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MockStore) Replace(ctx context.Context, key string, p domain.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[key]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Payload = p.Clone()
	m.data[key] = s
	return nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockStore) Reap(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, s := range m.data {
		if s.CreatedAt.Before(cutoff) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestSessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, NewMockStore())
}
