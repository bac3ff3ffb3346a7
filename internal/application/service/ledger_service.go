package service

import (
	"context"
	"fmt"
	"time"

	"github.com/docflow-io/docflow/internal/application/port"
	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/domain/workflow"
)

// LedgerService stores decisions for a review cycle and computes the
// aggregate outcome on demand
type LedgerService interface {
	// Record persists a reviewer's decision. Decisions are write-once:
	// re-submitting the same verdict fails with ErrDuplicateDecision and a
	// changed verdict fails with ErrDecisionImmutable.
	Record(ctx context.Context, documentID, cycleID int64, reviewerID, actorID string, verdict entity.Verdict, reason string) (*entity.Decision, error)

	// Outcome recomputes the cycle outcome as a pure fold over all decisions
	// and all reviewer assignments currently attached to the cycle
	Outcome(ctx context.Context, cycleID int64) (entity.Outcome, error)
}

type ledgerServiceImpl struct {
	assignmentRepo port.AssignmentRepository
	decisionRepo   port.DecisionRepository
	logger         Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	assignmentRepo port.AssignmentRepository,
	decisionRepo port.DecisionRepository,
	logger Logger,
) LedgerService {
	return &ledgerServiceImpl{
		assignmentRepo: assignmentRepo,
		decisionRepo:   decisionRepo,
		logger:         logger,
	}
}

// Record persists a reviewer's decision
func (s *ledgerServiceImpl) Record(ctx context.Context, documentID, cycleID int64, reviewerID, actorID string, verdict entity.Verdict, reason string) (*entity.Decision, error) {
	if !verdict.IsValid() {
		return nil, fmt.Errorf("invalid verdict %q", verdict)
	}
	if verdict == entity.VerdictReject && reason == "" {
		return nil, workflow.NewError(workflow.ErrDecisionRequiresReason).
			WithDocument(documentID, "").
			WithField("reason")
	}

	existing, err := s.decisionRepo.GetByCycleAndReviewer(ctx, cycleID, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("lookup decision: %w", err)
	}
	if existing != nil {
		kind := workflow.ErrDuplicateDecision
		if existing.Verdict != verdict {
			kind = workflow.ErrDecisionImmutable
		}
		return nil, workflow.NewError(kind).
			WithDocument(documentID, "").
			WithDetail(fmt.Sprintf("reviewer %q already decided %q", reviewerID, existing.Verdict))
	}

	decision := &entity.Decision{
		CycleID:    cycleID,
		ReviewerID: reviewerID,
		ActorID:    actorID,
		Verdict:    verdict,
		Reason:     reason,
		DecidedAt:  time.Now().UTC(),
	}
	if err := s.decisionRepo.Create(ctx, decision); err != nil {
		return nil, fmt.Errorf("record decision: %w", err)
	}

	s.logger.Info("Decision recorded",
		"document_id", documentID,
		"cycle_id", cycleID,
		"reviewer_id", reviewerID,
		"actor_id", actorID,
		"verdict", verdict,
	)
	return decision, nil
}

// Outcome recomputes the cycle outcome from the full decision set
func (s *ledgerServiceImpl) Outcome(ctx context.Context, cycleID int64) (entity.Outcome, error) {
	assignments, err := s.assignmentRepo.ListByCycleID(ctx, cycleID)
	if err != nil {
		return "", fmt.Errorf("list assignments: %w", err)
	}
	decisions, err := s.decisionRepo.ListByCycleID(ctx, cycleID)
	if err != nil {
		return "", fmt.Errorf("list decisions: %w", err)
	}
	return entity.ComputeOutcome(assignments, decisions), nil
}
