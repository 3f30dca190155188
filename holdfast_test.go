package holdfast_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/holdfast"
	"github.com/aretw0/holdfast/pkg/adapters/memory"
	"github.com/aretw0/holdfast/pkg/adapters/redis"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/observability"
	"github.com/aretw0/holdfast/pkg/persistence/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresStore(t *testing.T) {
	_, err := holdfast.New(nil)
	assert.Error(t, err)
}

func TestService_DeleteSessionReleasesLock(t *testing.T) {
	svc, err := holdfast.New(memory.NewStore())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Sessions().Create(ctx, domain.Session{ID: "s1", Name: "one"})
	require.NoError(t, err)
	_, err = svc.Sessions().Create(ctx, domain.Session{ID: "s2", Name: "two"})
	require.NoError(t, err)

	ok, err := svc.Locks().Acquire(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.DeleteSession(ctx, "s1"))
	assert.False(t, svc.Locks().IsLocked())

	ok, err = svc.Locks().Acquire(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, ok, "the lock is free once its holder is deleted")
}

func TestService_DeleteSessionRacingAcquire(t *testing.T) {
	svc, err := holdfast.New(memory.NewStore())
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := svc.Sessions().Create(ctx, domain.Session{ID: "s1", Name: "one"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Locks().Acquire(ctx, "s1")
			assert.NoError(t, err)
		}()
		require.NoError(t, svc.DeleteSession(ctx, "s1"))
		wg.Wait()

		require.False(t, svc.Locks().IsLocked(), "a deleted session must not hold the lock")
	}
}

func TestService_DeleteUnknown(t *testing.T) {
	svc, err := holdfast.New(memory.NewStore())
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteSession(context.Background(), "ghost"), domain.ErrSessionNotFound)
}

func TestService_TouchSessionReleasesExpiredLock(t *testing.T) {
	svc, err := holdfast.New(memory.NewStore(), holdfast.WithLockTimeout(20*time.Millisecond))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Sessions().Create(ctx, domain.Session{ID: "s1", Name: "one"})
	require.NoError(t, err)
	ok, err := svc.Locks().Acquire(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		return svc.TouchSession(ctx, "s1") == nil && !svc.Locks().IsLocked()
	}, time.Second, 10*time.Millisecond)
}

func TestService_TouchUnknown(t *testing.T) {
	svc, err := holdfast.New(memory.NewStore())
	require.NoError(t, err)
	assert.ErrorIs(t, svc.TouchSession(context.Background(), "ghost"), domain.ErrSessionNotFound)
}

func TestService_StartClearsPersistedLocks(t *testing.T) {
	store := memory.NewStore()
	now := time.Now()
	leftover := domain.NewSession("s1", "one", now)
	leftover.Locked = true
	leftover.LockedAt = &now
	require.NoError(t, store.Save(context.Background(), leftover))

	svc, err := holdfast.New(store)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))

	s, err := svc.Sessions().Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, s.Locked)
}

func TestService_RedisBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(mr.Addr(), "", 0)
	defer client.Close()

	svc, err := holdfast.New(redis.NewFromClient(client),
		holdfast.WithTokenStore(redis.NewTokens(client)),
		holdfast.WithLocker(redis.NewLocker(client, redis.DefaultPrefix), time.Second),
	)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Sessions().Create(ctx, domain.Session{ID: "s1", Name: "one"})
	require.NoError(t, err)
	ok, err := svc.Locks().Acquire(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	token, err := svc.Tokens().Issue(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists(redis.DefaultPrefix+"token:"+token))
	valid, err := svc.Tokens().ValidateAndConsume(ctx, token)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestService_StoreMiddleware(t *testing.T) {
	svc, err := holdfast.New(memory.NewStore(), holdfast.WithStoreMiddleware(middleware.NewMetricsMiddleware()))
	require.NoError(t, err)

	_, err = svc.Sessions().Create(context.Background(), domain.Session{ID: "s1", Name: "one"})
	require.NoError(t, err)
	assert.Positive(t, testutil.CollectAndCount(observability.StoreDuration))

	missing := observability.StoreErrors.WithLabelValues("load", "not_found")
	misses := testutil.ToFloat64(missing)
	_, err = svc.Sessions().Get(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, misses+1, testutil.ToFloat64(missing))
}
