package entity

import "time"

// ReviewCycle is one pass of a document through review. Cycles are ordered
// by Number within a document and are never deleted; prior cycles and their
// decisions remain queryable as the audit trail.
type ReviewCycle struct {
	ID         int64
	DocumentID int64
	Number     int
	Outcome    Outcome
	CreatedAt  time.Time
}

// ReviewerAssignment marks who must decide in a cycle. Assignments are
// append-only within a cycle; escalation adds new ones, nothing removes them.
type ReviewerAssignment struct {
	ID         int64
	CycleID    int64
	ReviewerID string

	// Escalated is true when this assignment was inserted by an escalation
	// rather than at cycle start
	Escalated bool

	// AssignedAt is the reviewer's elapsed-time baseline for escalation
	AssignedAt time.Time
}
