package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when creating a session whose ID is already taken.
var ErrSessionExists = errors.New("session already exists")

// ErrInvalidSession is returned when a session record is missing required fields.
var ErrInvalidSession = errors.New("invalid session")

// ErrCorruptRecord is returned by stores when a persisted record cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt session record")

// ErrStorageUnavailable is returned when the backing store cannot be reached.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrTokenInvalid is returned when an admission token is unknown, expired or already used.
var ErrTokenInvalid = errors.New("admission token invalid")
