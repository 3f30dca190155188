package domain

import "time"

// EventType defines the category of the event.
type EventType string

const (
	EventSessionAdded      EventType = "session_added"
	EventSessionUpdated    EventType = "session_updated"
	EventSessionRemoved    EventType = "session_removed"
	EventLockStatusChanged EventType = "lock_status_changed"
)

// Event is a change notification. Events are never persisted.
// Session is set for the session events; Locked is set for EventLockStatusChanged.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Session   *Session  `json:"session,omitempty"`
	Locked    bool      `json:"locked,omitempty"`
}

// SessionEvent builds a session added/updated/removed event.
func SessionEvent(t EventType, s *Session) Event {
	return Event{Type: t, Timestamp: time.Now(), Session: s.Clone()}
}

// LockEvent builds a lock status event.
func LockEvent(locked bool) Event {
	return Event{Type: EventLockStatusChanged, Timestamp: time.Now(), Locked: locked}
}
