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

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// WorkflowSettings holds engine defaults resolved from configuration
type WorkflowSettings struct {
	// DefaultEscalationTimeout applies to documents with no explicit timeout
	DefaultEscalationTimeout time.Duration

	// MaxEscalationDepth caps escalations per document
	MaxEscalationDepth int

	// EscalationApprovers is the default next-level approver chain,
	// indexed by the depth being entered
	EscalationApprovers []string
}

// CreateOptions carries optional per-document overrides at creation time
type CreateOptions struct {
	// EscalationTimeout overrides the system default; an explicit zero
	// means escalate immediately
	EscalationTimeout *time.Duration

	// MaxEscalationDepth overrides the configured cap when positive
	MaxEscalationDepth int

	// EscalationApprovers overrides the configured approver chain
	EscalationApprovers []string
}

// CycleHistory bundles one review cycle with everything recorded against it
type CycleHistory struct {
	Cycle       *entity.ReviewCycle
	Assignments []*entity.ReviewerAssignment
	Decisions   []*entity.Decision
	Escalations []*entity.EscalationRecord
}

// ApprovalService is the approval state machine: the single entry point for
// every mutating operation on a document. It validates the current status,
// resolves acting actors through the delegation service, records decisions
// through the ledger, and folds the ledger outcome back into the document
// status. Mutations on one document are serialized by a per-document lock
// and committed in a single transaction.
type ApprovalService interface {
	Create(ctx context.Context, authorID, title, content string, opts CreateOptions) (*entity.Document, error)
	Edit(ctx context.Context, documentID int64, actorID, title, content string) (*entity.Document, error)
	Submit(ctx context.Context, documentID int64, actorID string, reviewerIDs []string) (*entity.Document, error)
	Decide(ctx context.Context, documentID int64, actingActor string, verdict entity.Verdict, reason string) (*entity.Document, error)
	Resubmit(ctx context.Context, documentID int64, actorID string) (*entity.Document, error)

	// CheckEscalation evaluates timeout-driven escalation for the current
	// cycle at the given instant; any added reviewers are folded into the
	// cycle's assignment set
	CheckEscalation(ctx context.Context, documentID int64, now time.Time) ([]*entity.EscalationRecord, error)

	// TriggerEscalation escalates to an explicitly named approver
	TriggerEscalation(ctx context.Context, documentID int64, approverID string, now time.Time) (*entity.EscalationRecord, error)

	Get(ctx context.Context, documentID int64) (*entity.Document, error)
	List(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.Document, error)
	History(ctx context.Context, documentID int64) ([]*CycleHistory, error)
	PendingReviewers(ctx context.Context, documentID int64) ([]string, error)
}

type approvalServiceImpl struct {
	documentRepo   port.DocumentRepository
	cycleRepo      port.CycleRepository
	assignmentRepo port.AssignmentRepository
	decisionRepo   port.DecisionRepository
	escalationRepo port.EscalationRepository
	ledger         LedgerService
	delegations    DelegationService
	escalations    EscalationService
	txManager      port.TransactionManager
	dispatcher     dispatcher.Dispatcher
	settings       WorkflowSettings
	logger         Logger

	locks documentLocks
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	documentRepo port.DocumentRepository,
	cycleRepo port.CycleRepository,
	assignmentRepo port.AssignmentRepository,
	decisionRepo port.DecisionRepository,
	escalationRepo port.EscalationRepository,
	ledger LedgerService,
	delegations DelegationService,
	escalations EscalationService,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	settings WorkflowSettings,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		documentRepo:   documentRepo,
		cycleRepo:      cycleRepo,
		assignmentRepo: assignmentRepo,
		decisionRepo:   decisionRepo,
		escalationRepo: escalationRepo,
		ledger:         ledger,
		delegations:    delegations,
		escalations:    escalations,
		txManager:      txManager,
		dispatcher:     d,
		settings:       settings,
		logger:         logger,
	}
}

// Create creates a new document in draft status
func (s *approvalServiceImpl) Create(ctx context.Context, authorID, title, content string, opts CreateOptions) (*entity.Document, error) {
	maxDepth := s.settings.MaxEscalationDepth
	if opts.MaxEscalationDepth > 0 {
		maxDepth = opts.MaxEscalationDepth
	}
	chain := opts.EscalationApprovers
	if len(chain) == 0 {
		chain = s.settings.EscalationApprovers
	}

	now := time.Now().UTC()
	doc := &entity.Document{
		Title:               title,
		Content:             content,
		AuthorID:            authorID,
		Status:              workflow.StateDraft,
		EscalationTimeout:   opts.EscalationTimeout,
		MaxEscalationDepth:  maxDepth,
		EscalationApprovers: chain,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.documentRepo.Create(ctx, doc); err != nil {
		metrics.OperationsTotal.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("create document: %w", err)
	}

	metrics.OperationsTotal.WithLabelValues("create", "ok").Inc()
	s.logger.Info("Document created",
		"document_id", doc.ID,
		"author_id", authorID,
	)
	return doc, nil
}

// Edit updates a draft document's content. Only the author may edit.
func (s *approvalServiceImpl) Edit(ctx context.Context, documentID int64, actorID, title, content string) (*entity.Document, error) {
	unlock := s.locks.acquire(documentID)
	defer unlock()

	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	switch doc.Status {
	case workflow.StateApproved:
		return nil, workflow.NewError(workflow.ErrDocumentLocked).
			WithDocument(doc.ID, doc.Status).
			WithAction("edit")
	case workflow.StateReview:
		return nil, workflow.NewError(workflow.ErrUnderReview).
			WithDocument(doc.ID, doc.Status).
			WithAction("edit")
	case workflow.StateRejected:
		return nil, workflow.NewError(workflow.ErrInvalidTransition).
			WithDocument(doc.ID, doc.Status).
			WithAction("edit").
			WithDetail("rejected documents must be resubmitted, not edited")
	}
	if doc.AuthorID != actorID {
		return nil, workflow.NewError(workflow.ErrNotDocumentAuthor).
			WithDocument(doc.ID, doc.Status).
			WithAction("edit")
	}

	if err := s.documentRepo.UpdateContent(ctx, doc.ID, title, content); err != nil {
		metrics.OperationsTotal.WithLabelValues("edit", "error").Inc()
		return nil, fmt.Errorf("update content: %w", err)
	}
	doc.Title = title
	doc.Content = content

	metrics.OperationsTotal.WithLabelValues("edit", "ok").Inc()
	return doc, nil
}

// Submit moves a draft document into review, creating its next review cycle
func (s *approvalServiceImpl) Submit(ctx context.Context, documentID int64, actorID string, reviewerIDs []string) (*entity.Document, error) {
	unlock := s.locks.acquire(documentID)
	defer unlock()

	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.AuthorID != actorID {
		return nil, workflow.NewError(workflow.ErrNotDocumentAuthor).
			WithDocument(doc.ID, doc.Status).
			WithAction("submit")
	}
	if len(reviewerIDs) == 0 {
		return nil, workflow.NewError(workflow.ErrMissingReviewers).
			WithDocument(doc.ID, doc.Status).
			WithField("reviewer_ids")
	}
	for _, r := range reviewerIDs {
		if r == doc.AuthorID {
			return nil, workflow.NewError(workflow.ErrSelfApproval).
				WithDocument(doc.ID, doc.Status).
				WithField("reviewer_ids").
				WithDetail("author cannot be assigned as a reviewer of their own document")
		}
	}

	machine := workflow.BuildDocumentLifecycle(doc.Status)
	if err := machine.Fire(workflow.TriggerSubmit); err != nil {
		metrics.OperationsTotal.WithLabelValues("submit", "error").Inc()
		return nil, s.withDocumentContext(err, doc)
	}

	if err := s.startCycle(ctx, doc, reviewerIDs, machine.State()); err != nil {
		metrics.OperationsTotal.WithLabelValues("submit", "error").Inc()
		return nil, err
	}

	metrics.OperationsTotal.WithLabelValues("submit", "ok").Inc()
	s.logger.Info("Document submitted for review",
		"document_id", doc.ID,
		"reviewer_count", len(reviewerIDs),
	)
	return doc, nil
}

// Decide records a reviewer's verdict and folds the cycle outcome back into
// the document status. Outcome is always recomputed from the full decision
// set, so a reject wins no matter how writes interleave.
func (s *approvalServiceImpl) Decide(ctx context.Context, documentID int64, actingActor string, verdict entity.Verdict, reason string) (*entity.Document, error) {
	unlock := s.locks.acquire(documentID)
	defer unlock()

	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != workflow.StateReview || doc.CurrentCycleID == nil {
		return nil, workflow.NewError(workflow.ErrInvalidTransition).
			WithDocument(doc.ID, doc.Status).
			WithAction("decide")
	}
	if actingActor == doc.AuthorID {
		return nil, workflow.NewError(workflow.ErrSelfApproval).
			WithDocument(doc.ID, doc.Status).
			WithField("acting_actor")
	}

	cycleID := *doc.CurrentCycleID
	now := time.Now().UTC()

	reviewerID, viaDelegation, err := s.delegations.ResolveObligation(ctx, documentID, cycleID, actingActor, now)
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("decide", "error").Inc()
		return nil, s.withDocumentContext(err, doc)
	}
	if reviewerID == doc.AuthorID {
		return nil, workflow.NewError(workflow.ErrSelfApproval).
			WithDocument(doc.ID, doc.Status).
			WithField("acting_actor")
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.ledger.Record(txCtx, doc.ID, cycleID, reviewerID, actingActor, verdict, reason); err != nil {
			return err
		}

		outcome, err := s.ledger.Outcome(txCtx, cycleID)
		if err != nil {
			return err
		}

		switch outcome {
		case entity.OutcomeRejected:
			return s.closeCycle(txCtx, doc, cycleID, workflow.TriggerReject, entity.OutcomeRejected,
				fmt.Sprintf("Document '%s' has been rejected by reviewer '%s'", doc.Title, reviewerID))
		case entity.OutcomeApproved:
			return s.closeCycle(txCtx, doc, cycleID, workflow.TriggerApprove, entity.OutcomeApproved,
				fmt.Sprintf("Document '%s' has been approved by all reviewers", doc.Title))
		default:
			return nil
		}
	})
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("decide", "error").Inc()
		return nil, err
	}

	metrics.OperationsTotal.WithLabelValues("decide", "ok").Inc()
	metrics.DecisionsTotal.WithLabelValues(string(verdict)).Inc()
	s.logger.Info("Decision processed",
		"document_id", doc.ID,
		"cycle_id", cycleID,
		"reviewer_id", reviewerID,
		"acting_actor", actingActor,
		"via_delegation", viaDelegation,
		"verdict", verdict,
		"status", doc.Status,
	)
	return doc, nil
}

// Resubmit starts a fresh review cycle for a rejected document, reusing the
// most recent cycle's original reviewer set with a clean decision slate
func (s *approvalServiceImpl) Resubmit(ctx context.Context, documentID int64, actorID string) (*entity.Document, error) {
	unlock := s.locks.acquire(documentID)
	defer unlock()

	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.AuthorID != actorID {
		return nil, workflow.NewError(workflow.ErrNotDocumentAuthor).
			WithDocument(doc.ID, doc.Status).
			WithAction("resubmit")
	}

	machine := workflow.BuildDocumentLifecycle(doc.Status)
	if err := machine.Fire(workflow.TriggerResubmit); err != nil {
		metrics.OperationsTotal.WithLabelValues("resubmit", "error").Inc()
		return nil, s.withDocumentContext(err, doc)
	}

	if doc.CurrentCycleID == nil {
		return nil, workflow.NewError(workflow.ErrInvalidTransition).
			WithDocument(doc.ID, doc.Status).
			WithAction("resubmit").
			WithDetail("no previous review cycle")
	}

	// Escalated additions were a remedy for the previous cycle's timeouts;
	// the fresh cycle starts from the originally assigned reviewers
	previous, err := s.assignmentRepo.ListByCycleID(ctx, *doc.CurrentCycleID)
	if err != nil {
		return nil, fmt.Errorf("list previous assignments: %w", err)
	}
	var reviewerIDs []string
	for _, a := range previous {
		if !a.Escalated {
			reviewerIDs = append(reviewerIDs, a.ReviewerID)
		}
	}
	if len(reviewerIDs) == 0 {
		return nil, workflow.NewError(workflow.ErrMissingReviewers).
			WithDocument(doc.ID, doc.Status).
			WithField("reviewer_ids")
	}

	if err := s.startCycle(ctx, doc, reviewerIDs, machine.State()); err != nil {
		metrics.OperationsTotal.WithLabelValues("resubmit", "error").Inc()
		return nil, err
	}

	metrics.OperationsTotal.WithLabelValues("resubmit", "ok").Inc()
	s.logger.Info("Document resubmitted",
		"document_id", doc.ID,
		"reviewer_count", len(reviewerIDs),
	)
	return doc, nil
}

// CheckEscalation evaluates timeout-driven escalation for the current cycle
func (s *approvalServiceImpl) CheckEscalation(ctx context.Context, documentID int64, now time.Time) ([]*entity.EscalationRecord, error) {
	unlock := s.locks.acquire(documentID)
	defer unlock()

	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != workflow.StateReview {
		return nil, workflow.NewError(workflow.ErrInvalidTransition).
			WithDocument(doc.ID, doc.Status).
			WithAction("check_escalation")
	}

	var fired []*entity.EscalationRecord
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		fired, err = s.escalations.Evaluate(txCtx, doc, now)
		return err
	})
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("check_escalation", "error").Inc()
		return nil, err
	}

	metrics.OperationsTotal.WithLabelValues("check_escalation", "ok").Inc()
	return fired, nil
}

// TriggerEscalation escalates to an explicitly named approver
func (s *approvalServiceImpl) TriggerEscalation(ctx context.Context, documentID int64, approverID string, now time.Time) (*entity.EscalationRecord, error) {
	unlock := s.locks.acquire(documentID)
	defer unlock()

	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != workflow.StateReview {
		return nil, workflow.NewError(workflow.ErrInvalidTransition).
			WithDocument(doc.ID, doc.Status).
			WithAction("escalate")
	}

	var record *entity.EscalationRecord
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		record, err = s.escalations.Trigger(txCtx, doc, approverID, now)
		return err
	})
	if err != nil {
		metrics.OperationsTotal.WithLabelValues("escalate", "error").Inc()
		return nil, err
	}

	metrics.OperationsTotal.WithLabelValues("escalate", "ok").Inc()
	return record, nil
}

// Get retrieves a document by id
func (s *approvalServiceImpl) Get(ctx context.Context, documentID int64) (*entity.Document, error) {
	return s.getDocument(ctx, documentID)
}

// List returns documents, optionally filtered by status
func (s *approvalServiceImpl) List(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.Document, error) {
	return s.documentRepo.List(ctx, status, limit, offset)
}

// History returns every review cycle of a document with its assignments,
// decisions, and escalations. Cycles are never deleted.
func (s *approvalServiceImpl) History(ctx context.Context, documentID int64) ([]*CycleHistory, error) {
	if _, err := s.getDocument(ctx, documentID); err != nil {
		return nil, err
	}

	cycles, err := s.cycleRepo.ListByDocumentID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}

	history := make([]*CycleHistory, 0, len(cycles))
	for _, cycle := range cycles {
		assignments, err := s.assignmentRepo.ListByCycleID(ctx, cycle.ID)
		if err != nil {
			return nil, fmt.Errorf("list assignments: %w", err)
		}
		decisions, err := s.decisionRepo.ListByCycleID(ctx, cycle.ID)
		if err != nil {
			return nil, fmt.Errorf("list decisions: %w", err)
		}
		escalations, err := s.escalationRepo.ListByCycleID(ctx, cycle.ID)
		if err != nil {
			return nil, fmt.Errorf("list escalations: %w", err)
		}
		history = append(history, &CycleHistory{
			Cycle:       cycle,
			Assignments: assignments,
			Decisions:   decisions,
			Escalations: escalations,
		})
	}
	return history, nil
}

// PendingReviewers returns the reviewers of the current cycle who have not
// yet decided; empty when the document is not under review
func (s *approvalServiceImpl) PendingReviewers(ctx context.Context, documentID int64) ([]string, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != workflow.StateReview || doc.CurrentCycleID == nil {
		return []string{}, nil
	}

	assignments, err := s.assignmentRepo.ListByCycleID(ctx, *doc.CurrentCycleID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	decisions, err := s.decisionRepo.ListByCycleID(ctx, *doc.CurrentCycleID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	decided := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		decided[d.ReviewerID] = true
	}

	pending := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if !decided[a.ReviewerID] {
			pending = append(pending, a.ReviewerID)
		}
	}
	return pending, nil
}

// startCycle creates the next review cycle with the given reviewers and
// commits the status change and assignment notifications atomically
func (s *approvalServiceImpl) startCycle(ctx context.Context, doc *entity.Document, reviewerIDs []string, newStatus workflow.State) error {
	existing, err := s.cycleRepo.ListByDocumentID(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("list cycles: %w", err)
	}

	now := time.Now().UTC()
	cycle := &entity.ReviewCycle{
		DocumentID: doc.ID,
		Number:     len(existing) + 1,
		Outcome:    entity.OutcomePending,
		CreatedAt:  now,
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.cycleRepo.Create(txCtx, cycle); err != nil {
			return fmt.Errorf("create cycle: %w", err)
		}

		for _, reviewerID := range reviewerIDs {
			assignment := &entity.ReviewerAssignment{
				CycleID:    cycle.ID,
				ReviewerID: reviewerID,
				AssignedAt: now,
			}
			if err := s.assignmentRepo.Create(txCtx, assignment); err != nil {
				return fmt.Errorf("create assignment: %w", err)
			}
		}

		if err := s.documentRepo.UpdateStatus(txCtx, doc.ID, newStatus, &cycle.ID); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		doc.Status = newStatus
		doc.CurrentCycleID = &cycle.ID

		for _, reviewerID := range reviewerIDs {
			evt := event.New(event.TypeReviewerAssigned, doc.ID, reviewerID,
				fmt.Sprintf("You have been assigned to review document '%s'", doc.Title)).
				WithPayload("cycle_number", cycle.Number)
			if err := s.dispatcher.Dispatch(txCtx, evt); err != nil {
				return err
			}
		}
		return nil
	})
}

// closeCycle finalizes the current cycle with its terminal outcome,
// transitions the document, and notifies the author
func (s *approvalServiceImpl) closeCycle(ctx context.Context, doc *entity.Document, cycleID int64, trigger workflow.Trigger, outcome entity.Outcome, message string) error {
	machine := workflow.BuildDocumentLifecycle(doc.Status)
	if err := machine.Fire(trigger); err != nil {
		return s.withDocumentContext(err, doc)
	}

	if err := s.cycleRepo.UpdateOutcome(ctx, cycleID, outcome); err != nil {
		return fmt.Errorf("update cycle outcome: %w", err)
	}
	if err := s.documentRepo.UpdateStatus(ctx, doc.ID, machine.State(), doc.CurrentCycleID); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	doc.Status = machine.State()

	eventType := event.TypeDocumentApproved
	if outcome == entity.OutcomeRejected {
		eventType = event.TypeDocumentRejected
	}
	evt := event.New(eventType, doc.ID, doc.AuthorID, message)
	return s.dispatcher.Dispatch(ctx, evt)
}

// getDocument loads a document or returns ErrNotFound
func (s *approvalServiceImpl) getDocument(ctx context.Context, documentID int64) (*entity.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc == nil {
		return nil, workflow.NewError(workflow.ErrNotFound).WithDocument(documentID, "")
	}
	return doc, nil
}

// withDocumentContext fills in document id and status on workflow errors
// raised below the service, where the document was not in scope
func (s *approvalServiceImpl) withDocumentContext(err error, doc *entity.Document) error {
	if wfErr, ok := err.(*workflow.Error); ok {
		if wfErr.DocumentID == 0 {
			wfErr.DocumentID = doc.ID
		}
		if wfErr.Status == "" {
			wfErr.Status = doc.Status
		}
	}
	return err
}
