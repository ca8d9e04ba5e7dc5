package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/forge/pkg/domain"
	"github.com/google/uuid"
)

// RecordStore implements ports.RecordStore in memory.
// It backs tests and single-process demos; records vanish on restart.
type RecordStore struct {
	mu         sync.RWMutex
	records    []domain.Record
	characters map[string][]domain.Character
	now        func() time.Time
}

// NewRecordStore creates an empty in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		characters: make(map[string][]domain.Character),
		now:        time.Now,
	}
}

// CreateRecord validates and appends a record.
func (s *RecordStore) CreateRecord(ctx context.Context, record domain.Record) (string, error) {
	if err := record.Validate(); err != nil {
		return "", err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record.Resources = append([]domain.ResourceLine(nil), record.Resources...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return record.ID, nil
}

// FindRecentDuplicate scans for a record with the same key inside the window.
func (s *RecordStore) FindRecentDuplicate(ctx context.Context, key domain.EntityKey, window time.Duration) (bool, error) {
	cutoff := s.now().Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.Key() == key && !r.CreatedAt.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// CharactersFor lists an owner's characters.
func (s *RecordStore) CharactersFor(ctx context.Context, ownerID string) ([]domain.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Character(nil), s.characters[ownerID]...), nil
}

// RegisterCharacter adds a character for an owner.
func (s *RecordStore) RegisterCharacter(ctx context.Context, ownerID, name string) (domain.Character, error) {
	if ownerID == "" || name == "" {
		return domain.Character{}, domain.ErrMissingField
	}
	c := domain.Character{ID: uuid.NewString(), OwnerID: ownerID, Name: name}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters[ownerID] = append(s.characters[ownerID], c)
	return c, nil
}

// Records returns a copy of every stored record.
func (s *RecordStore) Records() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Record(nil), s.records...)
}
