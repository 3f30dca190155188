package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/observability"
	"github.com/aretw0/holdfast/pkg/ports"
)

type metricsMiddleware struct {
	next ports.SessionStore
}

// NewMetricsMiddleware records latency and failures of every store call.
func NewMetricsMiddleware() Middleware {
	return func(next ports.SessionStore) ports.SessionStore {
		return &metricsMiddleware{next: next}
	}
}

func observe(op string, start time.Time, err error) {
	observability.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.StoreErrors.WithLabelValues(op, errorKind(err)).Inc()
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrCorruptRecord):
		return "corrupt"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

func (m *metricsMiddleware) Save(ctx context.Context, session *domain.Session) (err error) {
	defer func(start time.Time) { observe("save", start, err) }(time.Now())
	return m.next.Save(ctx, session)
}

func (m *metricsMiddleware) Load(ctx context.Context, id string) (s *domain.Session, err error) {
	defer func(start time.Time) { observe("load", start, err) }(time.Now())
	return m.next.Load(ctx, id)
}

func (m *metricsMiddleware) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observe("delete", start, err) }(time.Now())
	return m.next.Delete(ctx, id)
}

func (m *metricsMiddleware) List(ctx context.Context) (ids []string, err error) {
	defer func(start time.Time) { observe("list", start, err) }(time.Now())
	return m.next.List(ctx)
}
