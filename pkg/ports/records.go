package ports

import (
	"context"
	"time"

	"github.com/aretw0/forge/pkg/domain"
)

// RecordStore is the durable business-record collaborator.
type RecordStore interface {
	// CreateRecord writes a finalized request and returns its id.
	// It fails with domain.ErrMissingField when required fields are empty.
	CreateRecord(ctx context.Context, record domain.Record) (string, error)

	// FindRecentDuplicate reports whether a record with the same key was created within window.
	FindRecentDuplicate(ctx context.Context, key domain.EntityKey, window time.Duration) (bool, error)

	// CharactersFor lists the characters registered by an owner.
	CharactersFor(ctx context.Context, ownerID string) ([]domain.Character, error)

	// RegisterCharacter adds a character for an owner and returns it with its id.
	RegisterCharacter(ctx context.Context, ownerID, name string) (domain.Character, error)
}
