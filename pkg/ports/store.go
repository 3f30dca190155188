package ports

import (
	"context"

	"github.com/aretw0/holdfast/pkg/domain"
)

// SessionStore defines the interface for persisting session records.
type SessionStore interface {
	// Save persists the session, overwriting any record with the same ID.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves the session for a given ID.
	// Returns domain.ErrSessionNotFound if the session does not exist and an error
	// wrapping domain.ErrCorruptRecord if the stored record cannot be decoded.
	Load(ctx context.Context, id string) (*domain.Session, error)

	// Delete removes the session for a given ID. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
