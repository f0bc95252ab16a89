package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope delivered to one participant. Handle carries the
// outbound message handle returned when SessionStarted was delivered, so
// transports can edit that message in place.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Handle    string          `json:"handle,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of match event
type EventType string

const (
	EventTypeSessionStarted EventType = "SessionStarted"
	EventTypeBoardUpdated   EventType = "BoardUpdated"
	EventTypeSessionEnded   EventType = "SessionEnded"
)

// New builds an event with a fresh id and the payload encoded as JSON.
func New(eventType EventType, sessionID string, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: at,
		Data:      data,
	}, nil
}

// ParsePayload decodes event data into the payload struct for its type.
func ParsePayload(event Event) (any, error) {
	switch event.Type {
	case EventTypeSessionStarted:
		var payload SessionStartedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBoardUpdated:
		var payload BoardUpdatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeSessionEnded:
		var payload SessionEndedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}
