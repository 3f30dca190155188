/*
Package domain contains the core models shared by every holdfast component.

It is kept free of I/O and persistence concerns. Adapters and services depend on it,
never the other way around.

# Key Entities

  - Session: the lockable named record tracked by the registry.
  - Event: a change notification (session added/updated/removed, lock status changed).
  - Errors: sentinel errors used across the module (not found, exists, storage unavailable).
*/
package domain
