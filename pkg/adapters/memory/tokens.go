package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
)

// Tokens implements ports.TokenStore in memory.
// Expired entries are swept lazily on every Put and Take.
type Tokens struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewTokens creates an empty token store.
func NewTokens() *Tokens {
	return &Tokens{entries: make(map[string]time.Time)}
}

// Put stores the token until expiresAt.
func (t *Tokens) Put(ctx context.Context, token string, expiresAt, now time.Time) error {
	if !now.Before(expiresAt) {
		return fmt.Errorf("%w: token expires before it is stored", domain.ErrTokenInvalid)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked(now)
	t.entries[token] = expiresAt
	return nil
}

// Take removes the token and reports whether it was still valid at now.
func (t *Tokens) Take(ctx context.Context, token string, now time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiresAt, ok := t.entries[token]
	delete(t.entries, token)
	t.sweepLocked(now)
	return ok && now.Before(expiresAt), nil
}

// Len returns the number of tokens held, including expired ones not yet swept.
func (t *Tokens) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tokens) sweepLocked(now time.Time) {
	for token, expiresAt := range t.entries {
		if !now.Before(expiresAt) {
			delete(t.entries, token)
		}
	}
}
