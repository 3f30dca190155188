// Package janitor periodically force-releases an expired lock and evicts
// sessions that have been idle for too long.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/holdfast/internal/logging"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/observability"
)

// DefaultInterval is how often Run sweeps.
const DefaultInterval = time.Minute

// Registry is the subset of the session registry the janitor needs.
type Registry interface {
	List(ctx context.Context) ([]domain.Session, error)
	DeleteIf(ctx context.Context, id string, pred func(*domain.Session) bool) (bool, error)
}

// Locks is the subset of the lock coordinator the janitor needs.
type Locks interface {
	ReleaseExpired(ctx context.Context) (bool, error)
	Recover(ctx context.Context) (int, error)
}

// Report summarizes one sweep.
type Report struct {
	Released bool     `json:"released"`
	Repaired int      `json:"repaired"`
	Removed  []string `json:"removed"`
}

// Janitor evicts idle sessions.
type Janitor struct {
	registry    Registry
	locks       Locks
	idleTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures the Janitor.
type Option func(*Janitor)

// WithIdleTimeout sets how long a session may go without interaction.
func WithIdleTimeout(d time.Duration) Option {
	return func(j *Janitor) {
		j.idleTimeout = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		j.now = now
	}
}

// WithLogger configures a logger for the Janitor.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Janitor) {
		j.logger = logger
	}
}

// New creates a janitor.
func New(registry Registry, locks Locks, opts ...Option) *Janitor {
	j := &Janitor{
		registry:    registry,
		locks:       locks,
		idleTimeout: domain.DefaultIdleTimeout,
		now:         time.Now,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Janitor) stale(s *domain.Session) bool {
	return !s.Locked && s.IdleSince(j.now()) > j.idleTimeout
}

// Sweep releases an expired lock, clears stale lock flags and removes idle
// unlocked sessions. Each candidate is re-checked under its record lock, so a
// session touched concurrently survives. Failures on single records are logged
// and retried on the next sweep; the joined errors are returned.
func (j *Janitor) Sweep(ctx context.Context) (Report, error) {
	var report Report
	var errs []error

	released, err := j.locks.ReleaseExpired(ctx)
	if err != nil {
		j.logger.Error("Failed to release expired lock", "err", err)
		errs = append(errs, err)
	}
	report.Released = released

	repaired, err := j.locks.Recover(ctx)
	if err != nil {
		j.logger.Error("Failed to clear stale lock flags", "err", err)
		errs = append(errs, err)
	}
	report.Repaired = repaired

	sessions, err := j.registry.List(ctx)
	if err != nil {
		j.logger.Error("Failed to list sessions", "err", err)
		return report, errors.Join(append(errs, err)...)
	}

	for i := range sessions {
		if !j.stale(&sessions[i]) {
			continue
		}
		id := sessions[i].ID
		removed, err := j.registry.DeleteIf(ctx, id, j.stale)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			j.logger.Error("Failed to evict idle session", "session_id", id, "err", err)
			errs = append(errs, err)
			continue
		}
		if removed {
			observability.SessionsEvicted.Inc()
			j.logger.Info("Evicted idle session", "session_id", id)
			report.Removed = append(report.Removed, id)
		}
	}

	return report, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done. Sweep errors never stop the loop.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("Janitor started", "interval", interval, "idle_timeout", j.idleTimeout)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Janitor stopped")
			return nil
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
				j.logger.Warn("Sweep finished with errors", "err", err)
			}
		}
	}
}
