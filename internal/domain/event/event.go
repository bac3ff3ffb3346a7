package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a notification event emitted by the engine. The engine never
// delivers anything itself; events are handed to collaborators that persist
// or forward them.
type Event struct {
	ID            string         `json:"id"`
	Type          Type           `json:"type"`
	DocumentID    int64          `json:"document_id"`
	RecipientID   string         `json:"recipient_id"`
	Message       string         `json:"message"`
	Payload       map[string]any `json:"payload,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id"`
}

// New creates a notification event with a generated ID and timestamp
func New(eventType Type, documentID int64, recipientID, message string) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		DocumentID:    documentID,
		RecipientID:   recipientID,
		Message:       message,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.NewString(),
	}
}

// WithCorrelation links the event to an existing correlation chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// WithPayload attaches a payload key-value pair
func (e *Event) WithPayload(key string, value any) *Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// PayloadString retrieves a string value from the payload
func (e *Event) PayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// PayloadInt retrieves an int64 value from the payload
func (e *Event) PayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
