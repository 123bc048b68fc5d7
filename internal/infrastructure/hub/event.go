package hub

import (
	"encoding/json"
	"fmt"
)

// EventType tags the kind of state change an Event carries.
type EventType string

const (
	EventTypeMessage  EventType = "message"
	EventTypeTyping   EventType = "typing"
	EventTypeReaction EventType = "reaction"
)

// Event is an immutable record of a committed state change, destined for
// every live connection. Clients filter by channel id themselves.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// NewMessageEvent wraps a freshly persisted chat message.
func NewMessageEvent(payload any) *Event {
	return &Event{Type: EventTypeMessage, Payload: payload}
}

// NewTypingEvent wraps a typing notice. Typing notices are never persisted.
func NewTypingEvent(payload any) *Event {
	return &Event{Type: EventTypeTyping, Payload: payload}
}

// NewReactionEvent wraps an added or toggled-off reaction.
func NewReactionEvent(payload any) *Event {
	return &Event{Type: EventTypeReaction, Payload: payload}
}

// Validate checks that the event is well-formed and wire-serializable.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("event cannot be nil")
	}

	switch e.Type {
	case EventTypeMessage, EventTypeTyping, EventTypeReaction:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}

	if e.Payload != nil {
		if _, err := json.Marshal(e.Payload); err != nil {
			return fmt.Errorf("event payload must be JSON serializable: %w", err)
		}
	}

	return nil
}
