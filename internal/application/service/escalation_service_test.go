package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/domain/workflow"
)

func TestEscalation_ZeroTimeout(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(defaultSettings())

	// An explicit zero timeout is honored, not replaced by the default:
	// the first check escalates immediately
	doc, err := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{EscalationTimeout: noTimeout()})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.approval.Submit(ctx, doc.ID, "alice", []string{"bob"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	fired, err := f.approval.CheckEscalation(ctx, doc.ID, timeNowPlus(time.Second))
	if err != nil {
		t.Fatalf("CheckEscalation() error = %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("CheckEscalation() fired = %d, want 1", len(fired))
	}
	if fired[0].EscalatedFrom != "bob" || fired[0].EscalatedTo != "lead-1" {
		t.Errorf("escalation = %q -> %q, want bob -> lead-1", fired[0].EscalatedFrom, fired[0].EscalatedTo)
	}
	if fired[0].Depth != 1 {
		t.Errorf("escalation depth = %d, want 1", fired[0].Depth)
	}

	// The escalated approver joins the cycle alongside the original reviewer
	pending, _ := f.approval.PendingReviewers(ctx, doc.ID)
	if len(pending) != 2 {
		t.Errorf("PendingReviewers() = %v, want bob and lead-1", pending)
	}

	notifs, _ := f.notifier.List(ctx, "lead-1", doc.ID)
	if len(notifs) != 1 {
		t.Errorf("notifications for lead-1 = %d, want 1", len(notifs))
	}
}

func TestEscalation_BeforeTimeout(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(defaultSettings())
	doc := f.submitDocument(t, "alice", []string{"bob"})

	// Default timeout is 24h; a check at +1h finds nothing overdue
	fired, err := f.approval.CheckEscalation(ctx, doc.ID, timeNowPlus(time.Hour))
	if err != nil {
		t.Fatalf("CheckEscalation() error = %v", err)
	}
	if len(fired) != 0 {
		t.Errorf("CheckEscalation() fired = %d, want 0", len(fired))
	}
}

func TestEscalation_RepeatedChecksAreIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(defaultSettings())
	doc := f.submitDocument(t, "alice", []string{"bob"})

	at := timeNowPlus(25 * time.Hour)
	fired, err := f.approval.CheckEscalation(ctx, doc.ID, at)
	if err != nil {
		t.Fatalf("CheckEscalation() error = %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("first check fired = %d, want 1", len(fired))
	}

	// The escalation reset the reviewer's baseline; an immediate second
	// check within the same interval fires nothing
	fired, err = f.approval.CheckEscalation(ctx, doc.ID, at.Add(time.Minute))
	if err != nil {
		t.Fatalf("CheckEscalation() error = %v", err)
	}
	if len(fired) != 0 {
		t.Errorf("second check fired = %d, want 0", len(fired))
	}
}

func TestEscalation_DepthNeverExceedsCap(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(defaultSettings())

	doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{EscalationTimeout: noTimeout()})
	if _, err := f.approval.Submit(ctx, doc.ID, "alice", []string{"bob"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// With a zero timeout every check escalates until the cap is reached
	total := 0
	for i := 0; i < 10; i++ {
		fired, err := f.approval.CheckEscalation(ctx, doc.ID, timeNowPlus(time.Duration(i+1)*time.Second))
		if err != nil {
			t.Fatalf("CheckEscalation() #%d error = %v", i, err)
		}
		total += len(fired)
	}
	if total != 3 {
		t.Errorf("total escalations = %d, want exactly the cap of 3", total)
	}

	got, _ := f.approval.Get(ctx, doc.ID)
	if got.EscalationDepth != 3 {
		t.Errorf("document depth = %d, want 3", got.EscalationDepth)
	}
	// The document stays in review; reaching the cap is never an error here
	if got.Status != workflow.StateReview {
		t.Errorf("status = %v, want %v", got.Status, workflow.StateReview)
	}
}

func TestEscalation_DecidedReviewerIsNotEscalated(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(defaultSettings())

	doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{EscalationTimeout: noTimeout()})
	if _, err := f.approval.Submit(ctx, doc.ID, "alice", []string{"bob", "carol"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, ""); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	fired, err := f.approval.CheckEscalation(ctx, doc.ID, timeNowPlus(time.Second))
	if err != nil {
		t.Fatalf("CheckEscalation() error = %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("fired = %d, want 1 (only carol is overdue)", len(fired))
	}
	if fired[0].EscalatedFrom != "carol" {
		t.Errorf("escalated from %q, want carol", fired[0].EscalatedFrom)
	}
}

func TestEscalation_EscalatedApproverCountsTowardOutcome(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(defaultSettings())

	doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{EscalationTimeout: noTimeout()})
	if _, err := f.approval.Submit(ctx, doc.ID, "alice", []string{"bob"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := f.approval.CheckEscalation(ctx, doc.ID, timeNowPlus(time.Second)); err != nil {
		t.Fatalf("CheckEscalation() error = %v", err)
	}

	// bob alone no longer satisfies the cycle: lead-1 must also approve
	updated, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, "")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if updated.Status != workflow.StateReview {
		t.Errorf("status = %v, want still %v", updated.Status, workflow.StateReview)
	}

	updated, err = f.approval.Decide(ctx, doc.ID, "lead-1", entity.VerdictApprove, "")
	if err != nil {
		t.Fatalf("Decide() by escalated approver error = %v", err)
	}
	if updated.Status != workflow.StateApproved {
		t.Errorf("status = %v, want %v", updated.Status, workflow.StateApproved)
	}
}

func TestEscalation_DocumentOverrides(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(defaultSettings())

	doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{
		EscalationTimeout:   noTimeout(),
		MaxEscalationDepth:  1,
		EscalationApprovers: []string{"cto"},
	})
	if _, err := f.approval.Submit(ctx, doc.ID, "alice", []string{"bob"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	fired, err := f.approval.CheckEscalation(ctx, doc.ID, timeNowPlus(time.Second))
	if err != nil {
		t.Fatalf("CheckEscalation() error = %v", err)
	}
	if len(fired) != 1 || fired[0].EscalatedTo != "cto" {
		t.Fatalf("fired = %+v, want one escalation to cto", fired)
	}

	fired, err = f.approval.CheckEscalation(ctx, doc.ID, timeNowPlus(2*time.Second))
	if err != nil {
		t.Fatalf("CheckEscalation() error = %v", err)
	}
	if len(fired) != 0 {
		t.Errorf("fired past the document cap = %d, want 0", len(fired))
	}
}

func TestEscalation_ManualTrigger(t *testing.T) {
	ctx := context.Background()

	t.Run("escalates to named approver", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})

		record, err := f.approval.TriggerEscalation(ctx, doc.ID, "cfo", time.Now().UTC())
		if err != nil {
			t.Fatalf("TriggerEscalation() error = %v", err)
		}
		if record.EscalatedTo != "cfo" || record.Depth != 1 {
			t.Errorf("record = %+v, want cfo at depth 1", record)
		}

		pending, _ := f.approval.PendingReviewers(ctx, doc.ID)
		if len(pending) != 2 {
			t.Errorf("PendingReviewers() = %v, want bob and cfo", pending)
		}
	})

	t.Run("approver is the author", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})

		_, err := f.approval.TriggerEscalation(ctx, doc.ID, "alice", time.Now().UTC())
		if !errors.Is(err, workflow.ErrSelfApproval) {
			t.Errorf("TriggerEscalation() error = %v, want ErrSelfApproval", err)
		}
	})

	t.Run("approver already assigned", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})

		_, err := f.approval.TriggerEscalation(ctx, doc.ID, "bob", time.Now().UTC())
		if !errors.Is(err, workflow.ErrReviewerAlreadyAssigned) {
			t.Errorf("TriggerEscalation() error = %v, want ErrReviewerAlreadyAssigned", err)
		}
	})

	t.Run("cap reached surfaces an error", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{MaxEscalationDepth: 1})
		if _, err := f.approval.Submit(ctx, doc.ID, "alice", []string{"bob"}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		if _, err := f.approval.TriggerEscalation(ctx, doc.ID, "cfo", time.Now().UTC()); err != nil {
			t.Fatalf("first TriggerEscalation() error = %v", err)
		}
		_, err := f.approval.TriggerEscalation(ctx, doc.ID, "ceo", time.Now().UTC())
		if !errors.Is(err, workflow.ErrMaxEscalationDepth) {
			t.Errorf("TriggerEscalation() error = %v, want ErrMaxEscalationDepth", err)
		}
	})

	t.Run("not under review", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{})

		_, err := f.approval.TriggerEscalation(ctx, doc.ID, "cfo", time.Now().UTC())
		if !errors.Is(err, workflow.ErrInvalidTransition) {
			t.Errorf("TriggerEscalation() error = %v, want ErrInvalidTransition", err)
		}
	})
}
