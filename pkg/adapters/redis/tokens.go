package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Tokens implements ports.TokenStore using Redis.
// Keys expire server-side; the stored expiry is also checked on Take so a token
// never validates past its deadline even if the key outlives it.
type Tokens struct {
	client *backend.Client
	prefix string
}

// NewTokens creates a token store from an existing client.
func NewTokens(client *backend.Client, opts ...Option) *Tokens {
	o := apply(opts)
	return &Tokens{client: client, prefix: o.prefix}
}

func (t *Tokens) key(token string) string {
	return t.prefix + "token:" + token
}

// Put stores the token with a Redis expiry of expiresAt minus now.
func (t *Tokens) Put(ctx context.Context, token string, expiresAt, now time.Time) error {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("%w: token expires before it is stored", domain.ErrTokenInvalid)
	}
	value := strconv.FormatInt(expiresAt.UnixMilli(), 10)
	if err := t.client.Set(ctx, t.key(token), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: failed to store token: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Take atomically reads and deletes the token with GETDEL.
func (t *Tokens) Take(ctx context.Context, token string, now time.Time) (bool, error) {
	val, err := t.client.GetDel(ctx, t.key(token)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to take token: %v", domain.ErrStorageUnavailable, err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, nil
	}
	return now.Before(time.UnixMilli(ms)), nil
}
