package lock

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

// Registry is the subset of the session registry the coordinator needs.
type Registry interface {
	List(ctx context.Context) ([]domain.Session, error)
	Mutate(ctx context.Context, id string, fn func(*domain.Session)) (*domain.Session, error)
	Patch(ctx context.Context, id string, fn func(*domain.Session)) (*domain.Session, error)
}

// Scheduler runs fn once after d.
type Scheduler func(d time.Duration, fn func())

// State is a snapshot of the coordinator.
type State struct {
	Locked     bool      `json:"locked"`
	Holder     string    `json:"holder,omitempty"`
	Generation uint64    `json:"generation"`
	AcquiredAt time.Time `json:"acquiredAt,omitempty"`
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) {}

// Coordinator is the exclusive-lock state machine.
type Coordinator struct {
	mu         sync.Mutex
	locked     bool
	holder     string
	generation uint64
	acquiredAt time.Time

	registry Registry
	bus      ports.EventPublisher
	timeout  time.Duration
	schedule Scheduler
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithPublisher sets where LockStatusChanged events are published.
func WithPublisher(bus ports.EventPublisher) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

// WithTimeout sets how long a lock may be held before the watchdog releases it.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithScheduler replaces time.AfterFunc for watchdog scheduling.
func WithScheduler(s Scheduler) Option {
	return func(c *Coordinator) {
		c.schedule = s
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithLogger configures a logger for the Coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates an unlocked coordinator over the given registry.
func NewCoordinator(registry Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		bus:      nopPublisher{},
		timeout:  domain.DefaultLockTimeout,
		schedule: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the watchdog timeout.
func (c *Coordinator) Timeout() time.Duration {
	return c.timeout
}

// Acquire gives the lock to session id. It returns false without error when the
// lock is already held or the session does not exist. An error means the store
// failed; the coordinator stays unlocked.
func (c *Coordinator) Acquire(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locked {
		observability.LockAcquires.WithLabelValues("held").Inc()
		c.logger.Debug("Lock already held", "session_id", id, "holder", c.holder)
		return false, nil
	}

	now := c.now()
	_, err := c.registry.Mutate(ctx, id, func(s *domain.Session) {
		s.Locked = true
		s.LockedAt = &now
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		observability.LockAcquires.WithLabelValues("unknown").Inc()
		return false, nil
	}
	if err != nil {
		observability.LockAcquires.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to persist lock: %w", err)
	}

	c.generation++
	c.locked = true
	c.holder = id
	c.acquiredAt = now
	gen := c.generation

	c.bus.Publish(ctx, domain.LockEvent(true))
	observability.LockAcquires.WithLabelValues("acquired").Inc()
	observability.LockHeld.Set(1)
	c.logger.Info("Lock acquired", "session_id", id, "generation", gen)

	c.schedule(c.timeout, func() { c.expire(id, gen) })
	return true, nil
}

// Release frees the lock if session id holds it. It returns false without error
// when the coordinator is not locked for exactly id.
func (c *Coordinator) Release(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.locked || c.holder != id {
		return false, nil
	}
	if err := c.releaseLocked(ctx, observability.ReasonManual); err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseExpired force-releases the lock if it has been held for at least the timeout.
func (c *Coordinator) ReleaseExpired(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.locked || c.now().Sub(c.acquiredAt) < c.timeout {
		return false, nil
	}
	c.logger.Warn("Session was locked for too long, unlocking", "session_id", c.holder)
	if err := c.releaseLocked(ctx, observability.ReasonJanitor); err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseAndRemove releases the lock if id holds it and then runs remove, all
// under the coordinator mutex. No Acquire of id can land between the two, so the
// coordinator never names a removed record as holder.
func (c *Coordinator) ReleaseAndRemove(ctx context.Context, id string, remove func(context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locked && c.holder == id {
		if err := c.releaseLocked(ctx, observability.ReasonDeleted); err != nil {
			return err
		}
	}
	return remove(ctx)
}

// expire is the watchdog callback.
func (c *Coordinator) expire(id string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.locked || c.holder != id || c.generation != gen {
		c.logger.Debug("Stale watchdog ignored", "session_id", id, "generation", gen)
		return
	}

	c.logger.Warn("Session was locked for too long, unlocking", "session_id", id, "generation", gen)
	ctx, cancel := context.WithTimeout(context.Background(), domain.DefaultStoreTimeout)
	defer cancel()
	if err := c.releaseLocked(ctx, observability.ReasonWatchdog); err != nil {
		c.logger.Error("Watchdog failed to release lock", "session_id", id, "err", err)
	}
}

// releaseLocked clears the holder's lock fields and transitions to Unlocked.
// A holder record that no longer exists does not prevent the transition.
// The caller must hold c.mu.
func (c *Coordinator) releaseLocked(ctx context.Context, reason string) error {
	id := c.holder
	_, err := c.registry.Mutate(ctx, id, func(s *domain.Session) {
		s.Locked = false
		s.LockedAt = nil
	})
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("failed to persist unlock: %w", err)
	}

	c.locked = false
	c.holder = ""
	c.acquiredAt = time.Time{}

	c.bus.Publish(ctx, domain.LockEvent(false))
	observability.LockReleases.WithLabelValues(reason).Inc()
	observability.LockHeld.Set(0)
	c.logger.Info("Lock released", "session_id", id, "reason", reason)
	return nil
}

// Recover clears the lock flag of every stored session that is not the current
// holder. At startup this drops locks persisted by a previous process, whose
// generation is not recoverable. The repair keeps each record's interaction
// time. It returns the number of records repaired.
func (c *Coordinator) Recover(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions, err := c.registry.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	repaired := 0
	for _, s := range sessions {
		if !s.Locked || (c.locked && s.ID == c.holder) {
			continue
		}
		_, err := c.registry.Patch(ctx, s.ID, func(s *domain.Session) {
			s.Locked = false
			s.LockedAt = nil
		})
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return repaired, fmt.Errorf("failed to clear stale lock on %s: %w", s.ID, err)
		}
		c.logger.Warn("Cleared stale lock flag", "session_id", s.ID)
		repaired++
	}
	return repaired, nil
}

// IsLocked reports whether any session holds the lock.
func (c *Coordinator) IsLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// State returns a snapshot of the coordinator.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Locked:     c.locked,
		Holder:     c.holder,
		Generation: c.generation,
		AcquiredAt: c.acquiredAt,
	}
}
