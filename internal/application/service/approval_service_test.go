package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/domain/workflow"
)

func TestApprovalService_Create(t *testing.T) {
	f := newEngineFixture(defaultSettings())

	doc, err := f.approval.Create(context.Background(), "alice", "Q3 budget", "numbers", CreateOptions{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if doc.Status != workflow.StateDraft {
		t.Errorf("Create() status = %v, want %v", doc.Status, workflow.StateDraft)
	}
	if doc.MaxEscalationDepth != 3 {
		t.Errorf("Create() max depth = %d, want 3", doc.MaxEscalationDepth)
	}
	if doc.CurrentCycleID != nil {
		t.Errorf("Create() current cycle = %v, want nil", *doc.CurrentCycleID)
	}
}

func TestApprovalService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("draft to review", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob", "carol"})

		if doc.Status != workflow.StateReview {
			t.Errorf("Submit() status = %v, want %v", doc.Status, workflow.StateReview)
		}
		if doc.CurrentCycleID == nil {
			t.Fatalf("Submit() left no current cycle")
		}

		pending, err := f.approval.PendingReviewers(ctx, doc.ID)
		if err != nil {
			t.Fatalf("PendingReviewers() error = %v", err)
		}
		if len(pending) != 2 {
			t.Errorf("PendingReviewers() = %v, want bob and carol", pending)
		}

		// Each reviewer gets an assignment notification
		notifs, err := f.notifier.List(ctx, "bob", doc.ID)
		if err != nil {
			t.Fatalf("List notifications error = %v", err)
		}
		if len(notifs) != 1 {
			t.Errorf("notifications for bob = %d, want 1", len(notifs))
		}
	})

	t.Run("empty reviewer set", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{})

		_, err := f.approval.Submit(ctx, doc.ID, "alice", nil)
		if !errors.Is(err, workflow.ErrMissingReviewers) {
			t.Errorf("Submit() error = %v, want ErrMissingReviewers", err)
		}
	})

	t.Run("author as reviewer", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{})

		_, err := f.approval.Submit(ctx, doc.ID, "alice", []string{"bob", "alice"})
		if !errors.Is(err, workflow.ErrSelfApproval) {
			t.Errorf("Submit() error = %v, want ErrSelfApproval", err)
		}
	})

	t.Run("non-author", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{})

		_, err := f.approval.Submit(ctx, doc.ID, "mallory", []string{"bob"})
		if !errors.Is(err, workflow.ErrNotDocumentAuthor) {
			t.Errorf("Submit() error = %v, want ErrNotDocumentAuthor", err)
		}
	})

	t.Run("already under review", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})

		_, err := f.approval.Submit(ctx, doc.ID, "alice", []string{"carol"})
		if !errors.Is(err, workflow.ErrInvalidTransition) {
			t.Errorf("Submit() error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("unknown document", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())

		_, err := f.approval.Submit(ctx, 999, "alice", []string{"bob"})
		if !errors.Is(err, workflow.ErrNotFound) {
			t.Errorf("Submit() error = %v, want ErrNotFound", err)
		}
	})
}

func TestApprovalService_Edit(t *testing.T) {
	ctx := context.Background()

	t.Run("draft edit by author", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{})

		updated, err := f.approval.Edit(ctx, doc.ID, "alice", "t2", "c2")
		if err != nil {
			t.Fatalf("Edit() error = %v", err)
		}
		if updated.Title != "t2" || updated.Content != "c2" {
			t.Errorf("Edit() did not apply: title=%q content=%q", updated.Title, updated.Content)
		}
	})

	t.Run("edit by non-author", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{})

		_, err := f.approval.Edit(ctx, doc.ID, "mallory", "t2", "c2")
		if !errors.Is(err, workflow.ErrNotDocumentAuthor) {
			t.Errorf("Edit() error = %v, want ErrNotDocumentAuthor", err)
		}
	})

	t.Run("edit under review", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})

		_, err := f.approval.Edit(ctx, doc.ID, "alice", "t2", "c2")
		if !errors.Is(err, workflow.ErrUnderReview) {
			t.Errorf("Edit() error = %v, want ErrUnderReview", err)
		}
	})

	t.Run("edit approved", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})
		if _, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, ""); err != nil {
			t.Fatalf("Decide() error = %v", err)
		}

		_, err := f.approval.Edit(ctx, doc.ID, "alice", "t2", "c2")
		if !errors.Is(err, workflow.ErrDocumentLocked) {
			t.Errorf("Edit() error = %v, want ErrDocumentLocked", err)
		}
	})
}

func TestApprovalService_Decide_AllApprove(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(defaultSettings())
	doc := f.submitDocument(t, "alice", []string{"bob", "carol"})

	doc, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, "looks good")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if doc.Status != workflow.StateReview {
		t.Errorf("status after first approval = %v, want still %v", doc.Status, workflow.StateReview)
	}

	pending, _ := f.approval.PendingReviewers(ctx, doc.ID)
	if len(pending) != 1 || pending[0] != "carol" {
		t.Errorf("PendingReviewers() = %v, want [carol]", pending)
	}

	doc, err = f.approval.Decide(ctx, doc.ID, "carol", entity.VerdictApprove, "")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if doc.Status != workflow.StateApproved {
		t.Errorf("status after full approval = %v, want %v", doc.Status, workflow.StateApproved)
	}

	// Author is notified of the terminal outcome
	notifs, _ := f.notifier.List(ctx, "alice", doc.ID)
	if len(notifs) != 1 {
		t.Errorf("author notifications = %d, want 1", len(notifs))
	}

	history, err := f.approval.History(ctx, doc.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("History() cycles = %d, want 1", len(history))
	}
	if history[0].Cycle.Outcome != entity.OutcomeApproved {
		t.Errorf("cycle outcome = %v, want %v", history[0].Cycle.Outcome, entity.OutcomeApproved)
	}
}

func TestApprovalService_Decide_RejectWins(t *testing.T) {
	ctx := context.Background()

	// One reviewer rejecting rejects the document regardless of how many
	// approvals were recorded first
	t.Run("approve then reject", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob", "carol"})

		if _, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, ""); err != nil {
			t.Fatalf("Decide(approve) error = %v", err)
		}
		doc, err := f.approval.Decide(ctx, doc.ID, "carol", entity.VerdictReject, "missing figures")
		if err != nil {
			t.Fatalf("Decide(reject) error = %v", err)
		}
		if doc.Status != workflow.StateRejected {
			t.Errorf("status = %v, want %v", doc.Status, workflow.StateRejected)
		}
	})

	t.Run("reject short-circuits before full coverage", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob", "carol", "dave"})

		doc, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictReject, "wrong quarter")
		if err != nil {
			t.Fatalf("Decide(reject) error = %v", err)
		}
		if doc.Status != workflow.StateRejected {
			t.Errorf("status = %v, want %v", doc.Status, workflow.StateRejected)
		}

		history, _ := f.approval.History(ctx, doc.ID)
		if history[0].Cycle.Outcome != entity.OutcomeRejected {
			t.Errorf("cycle outcome = %v, want %v", history[0].Cycle.Outcome, entity.OutcomeRejected)
		}
	})
}

func TestApprovalService_Decide_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("reject requires reason", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})

		_, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictReject, "")
		if !errors.Is(err, workflow.ErrDecisionRequiresReason) {
			t.Errorf("Decide() error = %v, want ErrDecisionRequiresReason", err)
		}
	})

	t.Run("duplicate decision", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob", "carol"})

		if _, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, ""); err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
		_, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, "")
		if !errors.Is(err, workflow.ErrDuplicateDecision) {
			t.Errorf("Decide() error = %v, want ErrDuplicateDecision", err)
		}
	})

	t.Run("changed verdict is immutable", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob", "carol"})

		if _, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, ""); err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
		_, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictReject, "changed my mind")
		if !errors.Is(err, workflow.ErrDecisionImmutable) {
			t.Errorf("Decide() error = %v, want ErrDecisionImmutable", err)
		}
	})

	t.Run("non-reviewer", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})

		_, err := f.approval.Decide(ctx, doc.ID, "mallory", entity.VerdictApprove, "")
		if !errors.Is(err, workflow.ErrNotAReviewer) {
			t.Errorf("Decide() error = %v, want ErrNotAReviewer", err)
		}
	})

	t.Run("author cannot decide", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})

		_, err := f.approval.Decide(ctx, doc.ID, "alice", entity.VerdictApprove, "")
		if !errors.Is(err, workflow.ErrSelfApproval) {
			t.Errorf("Decide() error = %v, want ErrSelfApproval", err)
		}
	})

	t.Run("decide on draft", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{})

		_, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, "")
		if !errors.Is(err, workflow.ErrInvalidTransition) {
			t.Errorf("Decide() error = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestApprovalService_Resubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh cycle with original reviewers", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob", "carol"})

		if _, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictReject, "needs work"); err != nil {
			t.Fatalf("Decide() error = %v", err)
		}

		doc, err := f.approval.Resubmit(ctx, doc.ID, "alice")
		if err != nil {
			t.Fatalf("Resubmit() error = %v", err)
		}
		if doc.Status != workflow.StateReview {
			t.Errorf("status = %v, want %v", doc.Status, workflow.StateReview)
		}

		history, _ := f.approval.History(ctx, doc.ID)
		if len(history) != 2 {
			t.Fatalf("History() cycles = %d, want 2", len(history))
		}
		if history[1].Cycle.Number != 2 {
			t.Errorf("second cycle number = %d, want 2", history[1].Cycle.Number)
		}
		if len(history[1].Decisions) != 0 {
			t.Errorf("new cycle decisions = %d, want a clean slate", len(history[1].Decisions))
		}

		// Both original reviewers owe a fresh decision; bob's earlier reject
		// belongs to the closed cycle
		pending, _ := f.approval.PendingReviewers(ctx, doc.ID)
		if len(pending) != 2 {
			t.Errorf("PendingReviewers() = %v, want both reviewers", pending)
		}

		if _, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, ""); err != nil {
			t.Fatalf("Decide() in new cycle error = %v", err)
		}
		doc, err = f.approval.Decide(ctx, doc.ID, "carol", entity.VerdictApprove, "")
		if err != nil {
			t.Fatalf("Decide() in new cycle error = %v", err)
		}
		if doc.Status != workflow.StateApproved {
			t.Errorf("status after resubmitted approval = %v, want %v", doc.Status, workflow.StateApproved)
		}
	})

	t.Run("escalated reviewers are not carried over", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		zero := noTimeout()
		doc, _ := f.approval.Create(ctx, "alice", "t", "c", CreateOptions{EscalationTimeout: zero})
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

		if _, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictReject, "no"); err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
		if _, err := f.approval.Resubmit(ctx, doc.ID, "alice"); err != nil {
			t.Fatalf("Resubmit() error = %v", err)
		}

		pending, _ := f.approval.PendingReviewers(ctx, doc.ID)
		if len(pending) != 1 || pending[0] != "bob" {
			t.Errorf("PendingReviewers() = %v, want only the original reviewer", pending)
		}
	})

	t.Run("resubmit non-rejected", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})

		_, err := f.approval.Resubmit(ctx, doc.ID, "alice")
		if !errors.Is(err, workflow.ErrInvalidTransition) {
			t.Errorf("Resubmit() error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("resubmit approved", func(t *testing.T) {
		f := newEngineFixture(defaultSettings())
		doc := f.submitDocument(t, "alice", []string{"bob"})
		if _, err := f.approval.Decide(ctx, doc.ID, "bob", entity.VerdictApprove, ""); err != nil {
			t.Fatalf("Decide() error = %v", err)
		}

		_, err := f.approval.Resubmit(ctx, doc.ID, "alice")
		if !errors.Is(err, workflow.ErrInvalidTransition) {
			t.Errorf("Resubmit() error = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestApprovalService_List(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(defaultSettings())

	f.submitDocument(t, "alice", []string{"bob"})
	if _, err := f.approval.Create(ctx, "alice", "draft doc", "c", CreateOptions{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	all, err := f.approval.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List(all) = %d documents, want 2", len(all))
	}

	inReview, err := f.approval.List(ctx, workflow.StateReview, 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(inReview) != 1 {
		t.Errorf("List(review) = %d documents, want 1", len(inReview))
	}
}
