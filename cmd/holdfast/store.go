package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/holdfast"
	"github.com/aretw0/holdfast/internal/config"
	"github.com/aretw0/holdfast/pkg/adapters/file"
	"github.com/aretw0/holdfast/pkg/adapters/memory"
	"github.com/aretw0/holdfast/pkg/adapters/redis"
	"github.com/aretw0/holdfast/pkg/persistence/middleware"
	"github.com/aretw0/holdfast/pkg/ports"
)

// backend bundles the stores selected by the config.
type backend struct {
	sessions ports.SessionStore
	options  []holdfast.Option
	close    func() error
}

func openBackend(ctx context.Context, c *config.Config) (*backend, error) {
	switch c.StoreDriver {
	case config.DriverMemory:
		return &backend{sessions: memory.NewStore(), close: func() error { return nil }}, nil
	case config.DriverFile:
		return &backend{sessions: file.New(c.StoreDir), close: func() error { return nil }}, nil
	case config.DriverRedis:
		client := redis.NewClient(c.RedisAddr, c.RedisPassword, c.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, c.StoreTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", c.RedisAddr, err)
		}
		prefix := redis.WithPrefix(c.RedisPrefix)
		return &backend{
			sessions: redis.NewFromClient(client, prefix),
			options: []holdfast.Option{
				holdfast.WithTokenStore(redis.NewTokens(client, prefix)),
				holdfast.WithLocker(redis.NewLocker(client, c.RedisPrefix), 30*time.Second),
			},
			close: client.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
}

func newService(ctx context.Context) (*holdfast.Service, *backend, error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := append([]holdfast.Option{
		holdfast.WithLogger(logger),
		holdfast.WithLockTimeout(cfg.LockTimeout),
		holdfast.WithIdleTimeout(cfg.IdleTimeout),
		holdfast.WithTokenTTL(cfg.TokenTTL),
		holdfast.WithSendTimeout(cfg.SendTimeout),
		holdfast.WithStoreTimeout(cfg.StoreTimeout),
		holdfast.WithStoreMiddleware(
			middleware.NewLoggingMiddleware(logger.With("component", "store")),
			middleware.NewMetricsMiddleware(),
		),
	}, b.options...)

	svc, err := holdfast.New(b.sessions, opts...)
	if err != nil {
		_ = b.close()
		return nil, nil, err
	}
	return svc, b, nil
}
