package domain

import (
	"strings"
	"time"
)

// Session is the lockable named entity managed by holdfast.
// The lock fields are owned by the lock coordinator; registry updates preserve them.
type Session struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Locked          bool       `json:"isLocked"`
	LockedAt        *time.Time `json:"lockDate,omitempty"`
	LastInteraction time.Time  `json:"lastInteractionDate"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// NewSession creates a session stamped with the given time.
func NewSession(id, name string, now time.Time) *Session {
	return &Session{
		ID:              id,
		Name:            name,
		LastInteraction: now,
		CreatedAt:       now,
	}
}

// Validate checks the fields a caller must supply.
func (s *Session) Validate() error {
	if s == nil || strings.TrimSpace(s.ID) == "" {
		return ErrInvalidSession
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored state through a pointer.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.LockedAt != nil {
		t := *s.LockedAt
		c.LockedAt = &t
	}
	return &c
}

// IdleSince reports how long the session has gone without interaction.
func (s *Session) IdleSince(now time.Time) time.Duration {
	return now.Sub(s.LastInteraction)
}
