package service

import (
	"context"
	"fmt"
	"time"

	"github.com/docflow-io/docflow/internal/application/dispatcher"
	"github.com/docflow-io/docflow/internal/application/port"
	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/domain/event"
	"github.com/docflow-io/docflow/internal/domain/workflow"
	"github.com/docflow-io/docflow/internal/metrics"
)

// EscalationService computes elapsed-time-vs-timeout per pending reviewer and
// inserts next-level approvers into the current cycle. It is invoked by the
// approval service inside the document's critical section and transaction;
// it never takes locks of its own.
type EscalationService interface {
	// Evaluate fires an escalation for every pending reviewer whose timeout
	// has elapsed, up to the document's depth cap. A reviewer who has decided
	// is never evaluated; a call that escalates resets the baseline so an
	// immediate second call finds nothing to do. Reaching the depth cap is
	// logged, not returned as an error.
	Evaluate(ctx context.Context, doc *entity.Document, now time.Time) ([]*entity.EscalationRecord, error)

	// Trigger escalates to an explicitly named approver, subject to the same
	// depth cap. Unlike Evaluate, cap and duplicate-assignment violations are
	// surfaced to the caller.
	Trigger(ctx context.Context, doc *entity.Document, approverID string, now time.Time) (*entity.EscalationRecord, error)
}

type escalationServiceImpl struct {
	documentRepo    port.DocumentRepository
	assignmentRepo  port.AssignmentRepository
	decisionRepo    port.DecisionRepository
	escalationRepo  port.EscalationRepository
	dispatcher      dispatcher.Dispatcher
	defaultTimeout  time.Duration
	defaultChain    []string
	logger          Logger
}

// NewEscalationService creates a new EscalationService
func NewEscalationService(
	documentRepo port.DocumentRepository,
	assignmentRepo port.AssignmentRepository,
	decisionRepo port.DecisionRepository,
	escalationRepo port.EscalationRepository,
	d dispatcher.Dispatcher,
	defaultTimeout time.Duration,
	defaultChain []string,
	logger Logger,
) EscalationService {
	return &escalationServiceImpl{
		documentRepo:   documentRepo,
		assignmentRepo: assignmentRepo,
		decisionRepo:   decisionRepo,
		escalationRepo: escalationRepo,
		dispatcher:     d,
		defaultTimeout: defaultTimeout,
		defaultChain:   defaultChain,
		logger:         logger,
	}
}

// Evaluate fires an escalation for every pending reviewer whose timeout has elapsed
func (s *escalationServiceImpl) Evaluate(ctx context.Context, doc *entity.Document, now time.Time) ([]*entity.EscalationRecord, error) {
	if doc.CurrentCycleID == nil {
		return nil, nil
	}
	cycleID := *doc.CurrentCycleID

	assignments, err := s.assignmentRepo.ListByCycleID(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	decisions, err := s.decisionRepo.ListByCycleID(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	escalations, err := s.escalationRepo.ListByCycleID(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}

	decided := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		decided[d.ReviewerID] = true
	}

	// A reviewer's baseline is the later of their assignment time and their
	// most recent escalation; resetting it on escalation is what makes
	// back-to-back evaluations idempotent.
	baselines := make(map[string]time.Time, len(assignments))
	assigned := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		baselines[a.ReviewerID] = a.AssignedAt
		assigned[a.ReviewerID] = true
	}
	for _, e := range escalations {
		if e.EscalatedFrom == "" {
			continue
		}
		if e.TriggeredAt.After(baselines[e.EscalatedFrom]) {
			baselines[e.EscalatedFrom] = e.TriggeredAt
		}
	}

	timeout := doc.EffectiveEscalationTimeout(s.defaultTimeout)
	var fired []*entity.EscalationRecord

	for _, a := range assignments {
		if decided[a.ReviewerID] {
			continue
		}
		if now.Sub(baselines[a.ReviewerID]) < timeout {
			continue
		}

		if doc.EscalationDepth >= doc.MaxEscalationDepth {
			// Not an error: log the max-depth event and move on
			s.logger.Info("Max escalation depth reached, not escalating",
				"document_id", doc.ID,
				"cycle_id", cycleID,
				"reviewer_id", a.ReviewerID,
				"depth", doc.EscalationDepth,
			)
			metrics.EscalationsCappedTotal.Inc()
			continue
		}

		approver, ok := s.nextApprover(doc)
		if !ok {
			s.logger.Error("No escalation approver configured for depth",
				"document_id", doc.ID,
				"depth", doc.EscalationDepth+1,
			)
			continue
		}
		if assigned[approver] {
			s.logger.Info("Escalation approver already assigned, skipping",
				"document_id", doc.ID,
				"cycle_id", cycleID,
				"approver_id", approver,
			)
			continue
		}

		record, err := s.escalate(ctx, doc, cycleID, a.ReviewerID, approver, timeout, now)
		if err != nil {
			return fired, err
		}
		assigned[approver] = true
		fired = append(fired, record)
	}

	return fired, nil
}

// Trigger escalates to an explicitly named approver
func (s *escalationServiceImpl) Trigger(ctx context.Context, doc *entity.Document, approverID string, now time.Time) (*entity.EscalationRecord, error) {
	if doc.CurrentCycleID == nil {
		return nil, workflow.NewError(workflow.ErrInvalidTransition).
			WithDocument(doc.ID, doc.Status).
			WithAction("escalate").
			WithDetail("no active review cycle")
	}
	cycleID := *doc.CurrentCycleID

	if approverID == doc.AuthorID {
		return nil, workflow.NewError(workflow.ErrSelfApproval).
			WithDocument(doc.ID, doc.Status).
			WithField("escalated_to")
	}
	if doc.EscalationDepth >= doc.MaxEscalationDepth {
		return nil, workflow.NewError(workflow.ErrMaxEscalationDepth).
			WithDocument(doc.ID, doc.Status).
			WithDetail(fmt.Sprintf("depth %d of %d", doc.EscalationDepth, doc.MaxEscalationDepth))
	}

	existing, err := s.assignmentRepo.GetByCycleAndReviewer(ctx, cycleID, approverID)
	if err != nil {
		return nil, fmt.Errorf("lookup assignment: %w", err)
	}
	if existing != nil {
		return nil, workflow.NewError(workflow.ErrReviewerAlreadyAssigned).
			WithDocument(doc.ID, doc.Status).
			WithField("escalated_to")
	}

	// Reference the first non-escalated pending reviewer as the origin
	escalatedFrom := ""
	assignments, err := s.assignmentRepo.ListByCycleID(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	decisions, err := s.decisionRepo.ListByCycleID(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	decided := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		decided[d.ReviewerID] = true
	}
	for _, a := range assignments {
		if !a.Escalated && !decided[a.ReviewerID] {
			escalatedFrom = a.ReviewerID
			break
		}
	}

	timeout := doc.EffectiveEscalationTimeout(s.defaultTimeout)
	return s.escalate(ctx, doc, cycleID, escalatedFrom, approverID, timeout, now)
}

// nextApprover resolves the approver for the depth the document is entering
func (s *escalationServiceImpl) nextApprover(doc *entity.Document) (string, bool) {
	chain := doc.EscalationApprovers
	if len(chain) == 0 {
		chain = s.defaultChain
	}
	idx := doc.EscalationDepth
	if idx >= len(chain) {
		return "", false
	}
	return chain[idx], true
}

// escalate inserts the approver into the cycle, records the escalation,
// advances the depth counter, and emits the notification event
func (s *escalationServiceImpl) escalate(ctx context.Context, doc *entity.Document, cycleID int64, fromReviewer, approverID string, timeout time.Duration, now time.Time) (*entity.EscalationRecord, error) {
	assignment := &entity.ReviewerAssignment{
		CycleID:    cycleID,
		ReviewerID: approverID,
		Escalated:  true,
		AssignedAt: now,
	}
	if err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		return nil, fmt.Errorf("create escalated assignment: %w", err)
	}

	newDepth := doc.EscalationDepth + 1
	record := &entity.EscalationRecord{
		DocumentID:     doc.ID,
		CycleID:        cycleID,
		Depth:          newDepth,
		EscalatedFrom:  fromReviewer,
		EscalatedTo:    approverID,
		TriggeredAt:    now,
		TimeoutApplied: timeout,
	}
	if err := s.escalationRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create escalation record: %w", err)
	}

	if err := s.documentRepo.SetEscalationDepth(ctx, doc.ID, newDepth); err != nil {
		return nil, fmt.Errorf("set escalation depth: %w", err)
	}
	doc.EscalationDepth = newDepth

	evt := event.New(event.TypeDocumentEscalated, doc.ID, approverID,
		fmt.Sprintf("Document '%s' has been escalated to you for review (depth %d)", doc.Title, newDepth)).
		WithPayload("depth", newDepth).
		WithPayload("escalated_from", fromReviewer)
	if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
		return nil, err
	}

	metrics.EscalationsTotal.Inc()
	s.logger.Info("Escalation fired",
		"document_id", doc.ID,
		"cycle_id", cycleID,
		"escalated_from", fromReviewer,
		"escalated_to", approverID,
		"depth", newDepth,
	)
	return record, nil
}
