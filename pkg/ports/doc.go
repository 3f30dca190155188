/*
Package ports defines the driven ports (interfaces) for holdfast.

These interfaces decouple the registry, lock coordinator and admission cache from their
storage backends and from the event transport.

# Key Interfaces

  - SessionStore: persists session records keyed by ID.
  - TokenStore: holds admission tokens with an atomic take.
  - DistributedLocker: optional per-record write guard shared by several processes.
  - EventPublisher / EventSubscriber: the change event bus as seen by producers and consumers.
*/
package ports
