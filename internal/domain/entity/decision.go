package entity

import "time"

// Verdict is a reviewer's ruling on a document
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

// IsValid returns true for the two recognized verdicts
func (v Verdict) IsValid() bool {
	return v == VerdictApprove || v == VerdictReject
}

// Outcome is the aggregate result of a review cycle
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// Decision is one reviewer's recorded verdict in a cycle. Exactly one
// decision may exist per (cycle, reviewer); once written it is immutable.
// ActorID differs from ReviewerID when the decision was recorded by an
// active substitute.
type Decision struct {
	ID         int64
	CycleID    int64
	ReviewerID string
	ActorID    string
	Verdict    Verdict
	Reason     string
	DecidedAt  time.Time
}

// ComputeOutcome folds the full decision set of a cycle into its outcome.
// Any reject wins regardless of arrival order; approved requires an approve
// from every assigned reviewer; anything else is pending. Recomputing this
// over the authoritative set after every write is what makes the
// reject-precedence rule hold under concurrent decisions.
func ComputeOutcome(assignments []*ReviewerAssignment, decisions []*Decision) Outcome {
	byReviewer := make(map[string]*Decision, len(decisions))
	for _, d := range decisions {
		if d.Verdict == VerdictReject {
			return OutcomeRejected
		}
		byReviewer[d.ReviewerID] = d
	}

	if len(assignments) == 0 {
		return OutcomePending
	}
	for _, a := range assignments {
		d, ok := byReviewer[a.ReviewerID]
		if !ok || d.Verdict != VerdictApprove {
			return OutcomePending
		}
	}
	return OutcomeApproved
}
