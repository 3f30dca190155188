package ports

import (
	"context"
	"time"
)

// TokenStore holds admission tokens until they are taken or expire.
type TokenStore interface {
	// Put stores the token until expiresAt, as seen from the caller's clock at now.
	// A token that is already expired at now is rejected with domain.ErrTokenInvalid.
	Put(ctx context.Context, token string, expiresAt, now time.Time) error

	// Take removes the token and reports whether it was present and unexpired at now.
	// The lookup and the removal must be atomic: two concurrent Takes of the same
	// token cannot both return true.
	Take(ctx context.Context, token string, now time.Time) (bool, error)
}
