// Package tokens issues and validates the single-use admission tokens that gate
// the realtime channel.
package tokens

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/holdfast/internal/logging"
	"github.com/aretw0/holdfast/pkg/adapters/memory"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/observability"
	"github.com/aretw0/holdfast/pkg/ports"
	"github.com/google/uuid"
)

// Cache issues random tokens with a fixed time-to-live and consumes them on first validation.
type Cache struct {
	store  ports.TokenStore
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures the Cache.
type Option func(*Cache)

// WithStore sets the backing token store. Defaults to an in-memory store.
func WithStore(store ports.TokenStore) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger configures a logger for the Cache.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a token cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:    domain.DefaultTokenTTL,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = memory.NewTokens()
	}
	return c
}

// TTL returns the token lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Issue generates and stores a fresh token.
func (c *Cache) Issue(ctx context.Context) (string, error) {
	token := c.newID()
	now := c.now()
	if err := c.store.Put(ctx, token, now.Add(c.ttl), now); err != nil {
		return "", err
	}
	observability.TokensIssued.Inc()
	c.logger.Debug("Admission token issued")
	return token, nil
}

// ValidateAndConsume reports whether token is known and unexpired, deleting it either way.
// A token validates at most once.
func (c *Cache) ValidateAndConsume(ctx context.Context, token string) (bool, error) {
	if token == "" {
		observability.TokensRejected.Inc()
		return false, nil
	}
	ok, err := c.store.Take(ctx, token, c.now())
	if err != nil {
		return false, err
	}
	if !ok {
		observability.TokensRejected.Inc()
		c.logger.Debug("Admission token rejected")
	}
	return ok, nil
}
