package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/holdfast/internal/logging"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/observability"
	"github.com/aretw0/holdfast/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) {}

// Manager is the session registry.
// It uses Reference Counting to garbage collect unused per-record locks.
type Manager struct {
	store ports.SessionStore
	bus   ports.EventPublisher

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration

	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithPublisher sets where change events are published.
func WithPublisher(bus ports.EventPublisher) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithLocker enables distributed locking of record writes.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithStoreTimeout bounds every individual store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new session registry with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		bus:     nopPublisher{},
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		timeout: domain.DefaultStoreTimeout,
		now:     time.Now,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock executes a function while holding the write lock for the record.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// load reads a record with a bounded timeout. Corrupt records are logged and
// reported as domain.ErrSessionNotFound.
func (m *Manager) load(ctx context.Context, id string) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	s, err := m.store.Load(ctx, id)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, domain.ErrCorruptRecord) {
		observability.CorruptRecords.Inc()
		m.logger.Error("Unreadable session record treated as absent", "session_id", id, "err", err)
		return nil, domain.ErrSessionNotFound
	}
	return nil, err
}

func (m *Manager) save(ctx context.Context, s *domain.Session) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.store.Save(ctx, s)
}

func (m *Manager) delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.store.Delete(ctx, id)
}

// List returns every readable session.
func (m *Manager) List(ctx context.Context) ([]domain.Session, error) {
	listCtx, cancel := context.WithTimeout(ctx, m.timeout)
	ids, err := m.store.List(listCtx)
	cancel()
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		s, err := m.load(ctx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue // deleted since List, or corrupt
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, nil
}

// Get returns the session with the given ID or domain.ErrSessionNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Session, error) {
	return m.load(ctx, id)
}

// GetByName returns the first session whose name matches exactly.
func (m *Manager) GetByName(ctx context.Context, name string) (*domain.Session, error) {
	sessions, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Name == name {
			return &sessions[i], nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

// Create stores a new session. The lock fields are reset and both timestamps set to now.
// Returns domain.ErrSessionExists if the ID is taken.
func (m *Manager) Create(ctx context.Context, s domain.Session) (*domain.Session, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var created *domain.Session
	err := m.WithLock(ctx, s.ID, func(ctx context.Context) error {
		_, err := m.load(ctx, s.ID)
		if err == nil {
			return fmt.Errorf("%w: %s", domain.ErrSessionExists, s.ID)
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		created = domain.NewSession(s.ID, s.Name, m.now())
		if err := m.save(ctx, created); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		m.bus.Publish(ctx, domain.SessionEvent(domain.EventSessionAdded, created))
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("Session created", "session_id", created.ID)
	return created.Clone(), nil
}

// Update overwrites the mutable fields of an existing session and refreshes its
// interaction time. CreatedAt and the lock fields are preserved.
func (m *Manager) Update(ctx context.Context, s domain.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := m.Mutate(ctx, s.ID, func(current *domain.Session) {
		current.Name = s.Name
	})
	return err
}

// Touch refreshes the interaction time of a session.
func (m *Manager) Touch(ctx context.Context, id string) error {
	_, err := m.Mutate(ctx, id, func(*domain.Session) {})
	return err
}

// Mutate applies fn to the stored record under the record lock, refreshes its
// interaction time, persists it and publishes EventSessionUpdated.
func (m *Manager) Mutate(ctx context.Context, id string, fn func(*domain.Session)) (*domain.Session, error) {
	return m.mutate(ctx, id, fn, true)
}

// Patch is Mutate without the interaction refresh. Maintenance writes use it so
// they do not extend a session's idle lifetime.
func (m *Manager) Patch(ctx context.Context, id string, fn func(*domain.Session)) (*domain.Session, error) {
	return m.mutate(ctx, id, fn, false)
}

func (m *Manager) mutate(ctx context.Context, id string, fn func(*domain.Session), touch bool) (*domain.Session, error) {
	var updated *domain.Session
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		current, err := m.load(ctx, id)
		if err != nil {
			return err
		}

		createdAt, lastInteraction := current.CreatedAt, current.LastInteraction
		fn(current)
		current.ID = id
		current.CreatedAt = createdAt
		current.LastInteraction = lastInteraction
		if touch {
			current.LastInteraction = m.now()
		}

		if err := m.save(ctx, current); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		m.bus.Publish(ctx, domain.SessionEvent(domain.EventSessionUpdated, current))
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Delete removes a session and publishes EventSessionRemoved with its last state.
func (m *Manager) Delete(ctx context.Context, id string) error {
	_, err := m.DeleteIf(ctx, id, nil)
	return err
}

// DeleteIf removes the session only if pred (evaluated under the record lock)
// returns true. A nil pred always deletes. It reports whether the record was removed.
func (m *Manager) DeleteIf(ctx context.Context, id string, pred func(*domain.Session) bool) (bool, error) {
	removed := false
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		current, err := m.load(ctx, id)
		if err != nil {
			return err
		}
		if pred != nil && !pred(current) {
			return nil
		}
		if err := m.delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		m.bus.Publish(ctx, domain.SessionEvent(domain.EventSessionRemoved, current))
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		m.logger.Info("Session deleted", "session_id", id)
	}
	return removed, nil
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
