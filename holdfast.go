package holdfast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/holdfast/internal/logging"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/events"
	"github.com/aretw0/holdfast/pkg/janitor"
	"github.com/aretw0/holdfast/pkg/lock"
	"github.com/aretw0/holdfast/pkg/persistence/middleware"
	"github.com/aretw0/holdfast/pkg/ports"
	"github.com/aretw0/holdfast/pkg/realtime"
	"github.com/aretw0/holdfast/pkg/session"
	"github.com/aretw0/holdfast/pkg/tokens"
)

// Service wires the registry, lock coordinator, event bus, admission tokens,
// realtime broadcaster and janitor around one session store.
type Service struct {
	bus         *events.Bus
	sessions    *session.Manager
	locks       *lock.Coordinator
	tokens      *tokens.Cache
	broadcaster *realtime.Broadcaster
	janitor     *janitor.Janitor

	middlewares  []middleware.Middleware
	tokenStore   ports.TokenStore
	locker       ports.DistributedLocker
	lockerTTL    time.Duration
	lockTimeout  time.Duration
	idleTimeout  time.Duration
	tokenTTL     time.Duration
	sendTimeout  time.Duration
	storeTimeout time.Duration
	logger       *slog.Logger
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithLogger sets a custom structured logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithStoreMiddleware wraps the session store, first middleware outermost.
func WithStoreMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Service) {
		s.middlewares = append(s.middlewares, mws...)
	}
}

// WithTokenStore sets where admission tokens live. Defaults to process memory.
func WithTokenStore(store ports.TokenStore) Option {
	return func(s *Service) {
		s.tokenStore = store
	}
}

// WithLocker serializes record writes across processes sharing a store.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = locker
		s.lockerTTL = ttl
	}
}

// WithLockTimeout sets how long the exclusive lock may be held (default 45s).
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.lockTimeout = d
	}
}

// WithIdleTimeout sets how long a session may stay idle before eviction (default 12h).
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.idleTimeout = d
	}
}

// WithTokenTTL sets the admission token lifetime (default 5m).
func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = d
	}
}

// WithSendTimeout sets the per-frame write deadline for observers (default 5s).
func WithSendTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.sendTimeout = d
	}
}

// WithStoreTimeout bounds every store call made by the registry (default 5s).
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.storeTimeout = d
	}
}

// New builds a Service over store.
func New(store ports.SessionStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	s := &Service{
		lockTimeout:  domain.DefaultLockTimeout,
		idleTimeout:  domain.DefaultIdleTimeout,
		tokenTTL:     domain.DefaultTokenTTL,
		sendTimeout:  domain.DefaultSendTimeout,
		storeTimeout: domain.DefaultStoreTimeout,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	store = middleware.Chain(store, s.middlewares...)
	s.bus = events.NewBus(events.WithLogger(s.logger.With("component", "events")))

	sessionOpts := []session.Option{
		session.WithPublisher(s.bus),
		session.WithStoreTimeout(s.storeTimeout),
		session.WithLogger(s.logger.With("component", "registry")),
	}
	if s.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(s.locker, s.lockerTTL))
	}
	s.sessions = session.NewManager(store, sessionOpts...)

	s.locks = lock.NewCoordinator(s.sessions,
		lock.WithPublisher(s.bus),
		lock.WithTimeout(s.lockTimeout),
		lock.WithLogger(s.logger.With("component", "lock")),
	)

	tokenOpts := []tokens.Option{
		tokens.WithTTL(s.tokenTTL),
		tokens.WithLogger(s.logger.With("component", "tokens")),
	}
	if s.tokenStore != nil {
		tokenOpts = append(tokenOpts, tokens.WithStore(s.tokenStore))
	}
	s.tokens = tokens.New(tokenOpts...)

	s.broadcaster = realtime.NewBroadcaster(s.bus, s.tokens,
		realtime.WithSendTimeout(s.sendTimeout),
		realtime.WithLogger(s.logger.With("component", "realtime")),
	)

	s.janitor = janitor.New(s.sessions, s.locks,
		janitor.WithIdleTimeout(s.idleTimeout),
		janitor.WithLogger(s.logger.With("component", "janitor")),
	)

	return s, nil
}

// Start clears lock flags left in the store by a previous process.
func (s *Service) Start(ctx context.Context) error {
	repaired, err := s.locks.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover lock state: %w", err)
	}
	if repaired > 0 {
		s.logger.Warn("Cleared stale locks on startup", "count", repaired)
	}
	return nil
}

// Close disconnects every observer.
func (s *Service) Close() {
	s.broadcaster.Close()
}

// DeleteSession releases the lock if id holds it, then removes the record.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	return s.locks.ReleaseAndRemove(ctx, id, func(ctx context.Context) error {
		return s.sessions.Delete(ctx, id)
	})
}

// TouchSession refreshes the interaction time of id and releases the lock if
// it has outlived the timeout.
func (s *Service) TouchSession(ctx context.Context, id string) error {
	if err := s.sessions.Touch(ctx, id); err != nil {
		return err
	}
	if _, err := s.locks.ReleaseExpired(ctx); err != nil {
		s.logger.Error("Failed to release expired lock", "err", err)
	}
	return nil
}

// Sessions returns the session registry.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// Locks returns the lock coordinator.
func (s *Service) Locks() *lock.Coordinator { return s.locks }

// Events returns the change event bus.
func (s *Service) Events() *events.Bus { return s.bus }

// Tokens returns the admission token cache.
func (s *Service) Tokens() *tokens.Cache { return s.tokens }

// Broadcaster returns the realtime broadcaster.
func (s *Service) Broadcaster() *realtime.Broadcaster { return s.broadcaster }

// Janitor returns the idle-session janitor.
func (s *Service) Janitor() *janitor.Janitor { return s.janitor }

// Store returns the underlying session store.
func (s *Service) Store() ports.SessionStore { return s.sessions.Store() }
