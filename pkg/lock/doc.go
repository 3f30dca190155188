/*
Package lock implements the exclusive lock coordinator.

At most one session may hold the lock at a time. The coordinator keeps the authoritative
state (holder, generation, acquired-at) in memory behind a mutex and mirrors it into the
holder's session record through the registry.

Every successful Acquire increments the generation and schedules a watchdog carrying that
generation. When the watchdog fires it releases the lock only if the same holder still
holds it under the same generation, so a stale timer can never release a later holder.

Events are published while the coordinator mutex is held, which keeps SessionUpdated and
LockStatusChanged ordered for observers. Event handlers must therefore not call back into
the coordinator synchronously.
*/
package lock
