package entity

import "time"

// EscalationRecord is the audit entry for one fired escalation
type EscalationRecord struct {
	ID         int64
	DocumentID int64
	CycleID    int64

	// Depth is the document's escalation depth after this record fired
	Depth int

	// EscalatedFrom is the pending reviewer whose timeout elapsed;
	// empty for manually triggered escalations
	EscalatedFrom string

	// EscalatedTo is the approver inserted into the cycle
	EscalatedTo string

	TriggeredAt time.Time

	// TimeoutApplied is the timeout in force when the escalation fired
	TimeoutApplied time.Duration
}
