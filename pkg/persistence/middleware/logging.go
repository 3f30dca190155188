package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.SessionStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs every store call at debug level and backend
// failures at warn level. Not-found results are expected and stay at debug.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.SessionStore) ports.SessionStore {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) log(ctx context.Context, op, id string, start time.Time, err error) {
	attrs := []any{"op", op, "duration", time.Since(start)}
	if id != "" {
		attrs = append(attrs, "session_id", id)
	}
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		m.logger.WarnContext(ctx, "Store operation failed", append(attrs, "err", err)...)
		return
	}
	m.logger.DebugContext(ctx, "Store operation", attrs...)
}

func (m *loggingMiddleware) Save(ctx context.Context, session *domain.Session) (err error) {
	defer func(start time.Time) { m.log(ctx, "save", session.ID, start, err) }(time.Now())
	return m.next.Save(ctx, session)
}

func (m *loggingMiddleware) Load(ctx context.Context, id string) (s *domain.Session, err error) {
	defer func(start time.Time) { m.log(ctx, "load", id, start, err) }(time.Now())
	return m.next.Load(ctx, id)
}

func (m *loggingMiddleware) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { m.log(ctx, "delete", id, start, err) }(time.Now())
	return m.next.Delete(ctx, id)
}

func (m *loggingMiddleware) List(ctx context.Context) (ids []string, err error) {
	defer func(start time.Time) { m.log(ctx, "list", "", start, err) }(time.Now())
	return m.next.List(ctx)
}
