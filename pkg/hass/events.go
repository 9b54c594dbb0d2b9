package hass

import (
	"encoding/json"
	"time"
)

// Websocket message types.
const (
	MessageAuthRequired    = "auth_required"
	MessageAuth            = "auth"
	MessageAuthOK          = "auth_ok"
	MessageAuthInvalid     = "auth_invalid"
	MessageSubscribeEvents = "subscribe_events"
	MessageResult          = "result"
	MessageEvent           = "event"

	EventStateChanged = "state_changed"
)

// AuthMessage answers auth_required.
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// SubscribeEventsMessage requests an event subscription.
type SubscribeEventsMessage struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
}

// Message is any message received over the websocket API.
type Message struct {
	ID        int64         `json:"id,omitempty"`
	Type      string        `json:"type"`
	HAVersion string        `json:"ha_version,omitempty"`
	Success   *bool         `json:"success,omitempty"`
	Error     *MessageError `json:"error,omitempty"`
	Message   string        `json:"message,omitempty"`
	Event     *Event        `json:"event,omitempty"`
}

// MessageError is the error object of a failed result.
type MessageError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is a bus event delivered to a subscription.
type Event struct {
	EventType string          `json:"event_type"`
	TimeFired time.Time       `json:"time_fired"`
	Data      json.RawMessage `json:"data"`
}

// StateChangedData is the payload of a state_changed event.
type StateChangedData struct {
	EntityID string       `json:"entity_id"`
	OldState *EntityState `json:"old_state"`
	NewState *EntityState `json:"new_state"`
}
