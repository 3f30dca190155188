/*
Package session implements the session registry.

The Manager provides CRUD operations over session records on top of a ports.SessionStore.
Writes to the same record are serialized through a reference-counted per-ID mutex (and an
optional distributed locker), and every successful write publishes a change event.
Reads never publish. A record that cannot be decoded is logged and reported as absent.
*/
package session
