package ports

import (
	"context"
	"time"

	"github.com/aretw0/forge/pkg/domain"
)

// SessionStore defines the interface for persisting transient flow sessions.
type SessionStore interface {
	// Save stores a new session under its key.
	Save(ctx context.Context, session domain.Session) error

	// Load retrieves a session by key.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, key string) (domain.Session, error)

	// Replace overwrites the payload of a live session, keeping its creation time.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Replace(ctx context.Context, key string, payload domain.Payload) error

	// Delete removes a session. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Reap deletes every session created before the cutoff and returns how many were removed.
	Reap(ctx context.Context, cutoff time.Time) (int, error)
}
