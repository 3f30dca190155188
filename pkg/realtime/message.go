package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/holdfast/pkg/domain"
)

// Message types on the wire.
const (
	TypeSessionChanged    = "sessionChanged"
	TypeLockStatusChanged = "lockStatusChanged"
)

// Message is the JSON frame sent to observers.
type Message struct {
	Type       string          `json:"type"`
	Action     string          `json:"action,omitempty"`
	Data       *domain.Session `json:"data,omitempty"`
	LockStatus *bool           `json:"lockStatus,omitempty"`
}

var actions = map[domain.EventType]string{
	domain.EventSessionAdded:   "added",
	domain.EventSessionUpdated: "updated",
	domain.EventSessionRemoved: "removed",
}

// NewMessage converts a bus event into its wire frame.
func NewMessage(event domain.Event) (Message, error) {
	if event.Type == domain.EventLockStatusChanged {
		locked := event.Locked
		return Message{Type: TypeLockStatusChanged, LockStatus: &locked}, nil
	}
	action, ok := actions[event.Type]
	if !ok {
		return Message{}, fmt.Errorf("unknown event type %q", event.Type)
	}
	if event.Session == nil {
		return Message{}, fmt.Errorf("event %q has no session", event.Type)
	}
	return Message{Type: TypeSessionChanged, Action: action, Data: event.Session}, nil
}

// Encode renders an event as a JSON text frame.
func Encode(event domain.Event) ([]byte, error) {
	msg, err := NewMessage(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
