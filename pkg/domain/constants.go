package domain

import "time"

// Default timings. Components accept overrides through their options.
const (
	// DefaultLockTimeout is how long a lock may be held before the watchdog releases it.
	DefaultLockTimeout = 45 * time.Second

	// DefaultIdleTimeout is how long a session may go without interaction before the janitor evicts it.
	DefaultIdleTimeout = 12 * time.Hour

	// DefaultTokenTTL is the lifetime of an admission token.
	DefaultTokenTTL = 5 * time.Minute

	// DefaultSendTimeout bounds a single realtime write.
	DefaultSendTimeout = 5 * time.Second

	// DefaultStoreTimeout bounds a single persistence call.
	DefaultStoreTimeout = 5 * time.Second
)
