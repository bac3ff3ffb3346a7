package entity

import "time"

// Notification is an emitted notification event as stored for the external
// delivery collaborator. The engine only records these; delivery happens
// elsewhere.
type Notification struct {
	ID          int64
	RecipientID string
	DocumentID  int64
	EventType   string
	Message     string
	CreatedAt   time.Time
}
