package event

import "testing"

func TestNew(t *testing.T) {
	evt := New(TypeReviewerAssigned, 7, "r1", "You have been assigned to review document 'Q3 plan'")

	if evt.ID == "" {
		t.Error("New() should generate an ID")
	}
	if evt.CorrelationID == "" {
		t.Error("New() should generate a correlation ID")
	}
	if evt.Type != TypeReviewerAssigned {
		t.Errorf("Type = %v, want %v", evt.Type, TypeReviewerAssigned)
	}
	if evt.DocumentID != 7 {
		t.Errorf("DocumentID = %v, want 7", evt.DocumentID)
	}
	if evt.RecipientID != "r1" {
		t.Errorf("RecipientID = %v, want r1", evt.RecipientID)
	}
	if evt.Timestamp.IsZero() {
		t.Error("New() should set a timestamp")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	evt := New(TypeDocumentEscalated, 7, "mgr1", "escalated").
		WithPayload("depth", 2).
		WithPayload("escalated_from", "r1")

	if got := evt.PayloadInt("depth"); got != 2 {
		t.Errorf("PayloadInt(depth) = %v, want 2", got)
	}
	if got := evt.PayloadString("escalated_from"); got != "r1" {
		t.Errorf("PayloadString(escalated_from) = %v, want r1", got)
	}
	if got := evt.PayloadString("missing"); got != "" {
		t.Errorf("PayloadString(missing) = %q, want empty", got)
	}
}

func TestEvent_WithCorrelation(t *testing.T) {
	evt := New(TypeDocumentApproved, 7, "u1", "approved")
	original := evt.CorrelationID

	evt.WithCorrelation("chain-1")
	if evt.CorrelationID != "chain-1" {
		t.Errorf("CorrelationID = %v, want chain-1", evt.CorrelationID)
	}
	if original == "chain-1" {
		t.Error("generated correlation id collided with test value")
	}
}

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		eventType Type
		expected  bool
	}{
		{TypeReviewerAssigned, true},
		{TypeDocumentApproved, true},
		{TypeDocumentRejected, true},
		{TypeDocumentEscalated, true},
		{TypeDelegationGranted, true},
		{TypeDelegationRevoked, true},
		{Type("document.printed"), false},
		{Type(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.expected {
				t.Errorf("IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}
