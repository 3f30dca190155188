package ports

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("Save and Load", func(t *testing.T) {
		s := domain.NewSession(sessionID, "Alice", now)
		require.NoError(t, store.Save(ctx, s), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.ID)
		assert.Equal(t, "Alice", loaded.Name)
		assert.False(t, loaded.Locked)
		assert.Nil(t, loaded.LockedAt)
		assert.True(t, now.Equal(loaded.CreatedAt), "CreatedAt should round-trip")
		assert.True(t, now.Equal(loaded.LastInteraction), "LastInteraction should round-trip")
	})

	t.Run("Save Overwrites Lock Fields", func(t *testing.T) {
		s := domain.NewSession(sessionID, "Alice", now)
		at := now.Add(time.Second)
		s.Locked = true
		s.LockedAt = &at
		require.NoError(t, store.Save(ctx, s))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.True(t, loaded.Locked)
		require.NotNil(t, loaded.LockedAt)
		assert.True(t, at.Equal(*loaded.LockedAt))

		s.Locked = false
		s.LockedAt = nil
		require.NoError(t, store.Save(ctx, s))
		loaded, err = store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.False(t, loaded.Locked)
		assert.Nil(t, loaded.LockedAt)
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Name = "mutated"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", again.Name, "mutating a loaded record must not change the store")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewSession(sessionID, "Alice", now)))

		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting a missing session is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewSession(id1, "one", now)))
		require.NoError(t, store.Save(ctx, domain.NewSession(id2, "two", now)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
		assert.NotContains(t, ids, sessionID)
	})
}

// RunTokenStoreContract verifies that a TokenStore honors expiry and single use.
func RunTokenStoreContract(t *testing.T, store TokenStore) {
	ctx := context.Background()
	now := time.Now()

	t.Run("Take Once", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "tok-once", now.Add(time.Minute), now))

		ok, err := store.Take(ctx, "tok-once", now)
		require.NoError(t, err)
		assert.True(t, ok, "first take should succeed")

		ok, err = store.Take(ctx, "tok-once", now)
		require.NoError(t, err)
		assert.False(t, ok, "second take should fail")
	})

	t.Run("Unknown Token", func(t *testing.T) {
		ok, err := store.Take(ctx, "tok-unknown", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Expired Token", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "tok-expired", now.Add(time.Minute), now))

		ok, err := store.Take(ctx, "tok-expired", now.Add(2*time.Minute))
		require.NoError(t, err)
		assert.False(t, ok, "expired token must never validate")
	})

	t.Run("Caller Clock", func(t *testing.T) {
		past := now.Add(-time.Hour)
		require.NoError(t, store.Put(ctx, "tok-past", past.Add(time.Minute), past))

		ok, err := store.Take(ctx, "tok-past", past.Add(30*time.Second))
		require.NoError(t, err)
		assert.True(t, ok, "validity follows the caller's clock, not wall time")
	})

	t.Run("Already Expired", func(t *testing.T) {
		err := store.Put(ctx, "tok-stillborn", now, now)
		assert.ErrorIs(t, err, domain.ErrTokenInvalid)

		ok, err := store.Take(ctx, "tok-stillborn", now.Add(-time.Minute))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Concurrent Take", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "tok-race", now.Add(time.Minute), now))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.Take(ctx, "tok-race", now)
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load(), "exactly one concurrent take may win")
	})
}
