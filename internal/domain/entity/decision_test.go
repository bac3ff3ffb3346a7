package entity

import (
	"testing"
	"time"
)

func assignments(reviewers ...string) []*ReviewerAssignment {
	out := make([]*ReviewerAssignment, 0, len(reviewers))
	for _, r := range reviewers {
		out = append(out, &ReviewerAssignment{CycleID: 1, ReviewerID: r})
	}
	return out
}

func decision(reviewer string, verdict Verdict) *Decision {
	return &Decision{CycleID: 1, ReviewerID: reviewer, ActorID: reviewer, Verdict: verdict}
}

func TestComputeOutcome(t *testing.T) {
	tests := []struct {
		name        string
		assignments []*ReviewerAssignment
		decisions   []*Decision
		expected    Outcome
	}{
		{
			name:        "no decisions",
			assignments: assignments("r1", "r2"),
			decisions:   nil,
			expected:    OutcomePending,
		},
		{
			name:        "partial approvals",
			assignments: assignments("r1", "r2"),
			decisions:   []*Decision{decision("r1", VerdictApprove)},
			expected:    OutcomePending,
		},
		{
			name:        "all approved",
			assignments: assignments("r1", "r2"),
			decisions: []*Decision{
				decision("r1", VerdictApprove),
				decision("r2", VerdictApprove),
			},
			expected: OutcomeApproved,
		},
		{
			name:        "single reject short-circuits pending reviewers",
			assignments: assignments("r1", "r2", "r3"),
			decisions:   []*Decision{decision("r2", VerdictReject)},
			expected:    OutcomeRejected,
		},
		{
			name:        "escalated reviewer still pending",
			assignments: append(assignments("r1", "r2"), &ReviewerAssignment{CycleID: 1, ReviewerID: "mgr1", Escalated: true}),
			decisions: []*Decision{
				decision("r1", VerdictApprove),
				decision("r2", VerdictApprove),
			},
			expected: OutcomePending,
		},
		{
			name:        "no assignments never approves",
			assignments: nil,
			decisions:   nil,
			expected:    OutcomePending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeOutcome(tt.assignments, tt.decisions); got != tt.expected {
				t.Errorf("ComputeOutcome() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// Reject must win regardless of the order decisions were written.
func TestComputeOutcome_RejectWinsUnderAnyOrdering(t *testing.T) {
	approveFirst := []*Decision{
		decision("r1", VerdictApprove),
		decision("r2", VerdictReject),
	}
	rejectFirst := []*Decision{
		decision("r2", VerdictReject),
		decision("r1", VerdictApprove),
	}

	assigned := assignments("r1", "r2")

	if got := ComputeOutcome(assigned, approveFirst); got != OutcomeRejected {
		t.Errorf("approve-then-reject: ComputeOutcome() = %v, want %v", got, OutcomeRejected)
	}
	if got := ComputeOutcome(assigned, rejectFirst); got != OutcomeRejected {
		t.Errorf("reject-then-approve: ComputeOutcome() = %v, want %v", got, OutcomeRejected)
	}
}

func TestDelegation_ActiveAt(t *testing.T) {
	now := time.Now()
	revokedAt := now.Add(-time.Minute)

	tests := []struct {
		name       string
		delegation Delegation
		expected   bool
	}{
		{"active", Delegation{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", Delegation{ExpiresAt: now.Add(-time.Hour)}, false},
		{"expires exactly now", Delegation{ExpiresAt: now}, false},
		{"revoked", Delegation{ExpiresAt: now.Add(time.Hour), Revoked: true, RevokedAt: &revokedAt}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.delegation.ActiveAt(now); got != tt.expected {
				t.Errorf("ActiveAt() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDocument_EffectiveEscalationTimeout(t *testing.T) {
	zero := time.Duration(0)
	twoHours := 2 * time.Hour

	tests := []struct {
		name     string
		timeout  *time.Duration
		expected time.Duration
	}{
		{"unset falls back to default", nil, 24 * time.Hour},
		{"explicit zero is honored", &zero, 0},
		{"explicit value", &twoHours, 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Document{EscalationTimeout: tt.timeout}
			if got := doc.EffectiveEscalationTimeout(24 * time.Hour); got != tt.expected {
				t.Errorf("EffectiveEscalationTimeout() = %v, want %v", got, tt.expected)
			}
		})
	}
}
