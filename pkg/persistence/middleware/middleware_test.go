package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/holdfast/pkg/adapters/memory"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/observability"
	"github.com/aretw0/holdfast/pkg/persistence/middleware"
	"github.com/aretw0/holdfast/pkg/ports"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareChain_Contract(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store := middleware.Chain(memory.NewStore(),
		middleware.NewLoggingMiddleware(logger),
		middleware.NewMetricsMiddleware(),
	)
	ports.RunSessionStoreContract(t, store)
	assert.Contains(t, buf.String(), "op=save")
}

func TestMetricsMiddleware_CountsErrorsByKind(t *testing.T) {
	store := middleware.NewMetricsMiddleware()(memory.NewStore())
	counter := observability.StoreErrors.WithLabelValues("load", "not_found")
	before := testutil.ToFloat64(counter)

	_, err := store.Load(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestLoggingMiddleware_NotFoundIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := middleware.NewLoggingMiddleware(logger)(memory.NewStore())

	_, err := store.Load(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Empty(t, buf.String())
}

type order struct {
	calls *[]string
	name  string
	next  ports.SessionStore
}

func (o *order) Save(ctx context.Context, s *domain.Session) error {
	*o.calls = append(*o.calls, o.name)
	return o.next.Save(ctx, s)
}
func (o *order) Load(ctx context.Context, id string) (*domain.Session, error) { return o.next.Load(ctx, id) }
func (o *order) Delete(ctx context.Context, id string) error { return o.next.Delete(ctx, id) }
func (o *order) List(ctx context.Context) ([]string, error) { return o.next.List(ctx) }

func TestChain_FirstIsOutermost(t *testing.T) {
	var calls []string
	mw := func(name string) middleware.Middleware {
		return func(next ports.SessionStore) ports.SessionStore {
			return &order{calls: &calls, name: name, next: next}
		}
	}

	store := middleware.Chain(memory.NewStore(), mw("outer"), mw("inner"))
	require.NoError(t, store.Save(context.Background(), domain.NewSession("s1", "x", time.Now())))
	assert.Equal(t, []string{"outer", "inner"}, calls)
}
