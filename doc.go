/*
Package holdfast keeps a pool of named session records and guarantees that at
most one of them holds an exclusive lock at any time.

# Concept

A session is a small persisted record (id, name, lock flag, timestamps). Any
session may ask for the lock; the first one wins and every other request is
refused until the holder releases it. A held lock never outlives a fixed
timeout (45s by default): a watchdog frees it even if the holder disappears.

Every change (session added, updated, removed, lock taken or freed) is
published on an in-process event bus and pushed to WebSocket observers.
Observers are admitted with single-use tokens that expire after five minutes.
A janitor evicts sessions that have been idle for more than twelve hours.

# Components

  - pkg/session: the registry over a ports.SessionStore (memory, file, Redis).
  - pkg/lock: the lock coordinator and its generation-stamped watchdog.
  - pkg/events: the synchronous change event bus.
  - pkg/tokens: the admission token cache.
  - pkg/realtime: the WebSocket broadcaster.
  - pkg/janitor: idle-session eviction.

# Usage

	store := memory.NewStore()
	svc, err := holdfast.New(store, holdfast.WithLogger(logging.New(slog.LevelInfo)))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if _, err := svc.Sessions().Create(ctx, domain.Session{ID: "s1", Name: "printer"}); err != nil {
		log.Fatal(err)
	}

	ok, err := svc.Locks().Acquire(ctx, "s1")
	if err != nil {
		log.Fatal(err)
	}
	if ok {
		defer svc.Locks().Release(ctx, "s1")
	}
*/
package holdfast
