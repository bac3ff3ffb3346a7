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
)

// DelegationService manages time-bound substitute authority for reviewers.
// Delegation is a flat one-hop relation scoped to a single document; it never
// extends to other documents or cycles and substitutes can never delegate on.
type DelegationService interface {
	// Delegate grants substitute authority for the delegator's obligation
	Delegate(ctx context.Context, documentID int64, delegatorID, substituteID string, expiresAt time.Time) (*entity.Delegation, error)

	// Revoke withdraws the delegator's active delegation. Idempotent:
	// revoking an already-revoked, expired, or missing delegation succeeds
	// without effect.
	Revoke(ctx context.Context, documentID int64, delegatorID string) error

	// ResolveActiveSubstitution returns the substitute currently authorized
	// to act for the reviewer, if any. Expiry is checked lazily here; no
	// background sweep is needed for correctness.
	ResolveActiveSubstitution(ctx context.Context, documentID int64, reviewerID string, now time.Time) (string, bool, error)

	// ResolveObligation maps an acting actor to the reviewer obligation it
	// holds in the cycle: the actor itself when directly assigned, else the
	// delegator of an active delegation naming the actor as substitute.
	// Returns the reviewer id and whether resolution went through a
	// delegation.
	ResolveObligation(ctx context.Context, documentID, cycleID int64, actorID string, now time.Time) (string, bool, error)

	// ListByDocument returns all delegations recorded for a document
	ListByDocument(ctx context.Context, documentID int64) ([]*entity.Delegation, error)
}

type delegationServiceImpl struct {
	documentRepo   port.DocumentRepository
	assignmentRepo port.AssignmentRepository
	decisionRepo   port.DecisionRepository
	delegationRepo port.DelegationRepository
	txManager      port.TransactionManager
	dispatcher     dispatcher.Dispatcher
	logger         Logger
}

// NewDelegationService creates a new DelegationService
func NewDelegationService(
	documentRepo port.DocumentRepository,
	assignmentRepo port.AssignmentRepository,
	decisionRepo port.DecisionRepository,
	delegationRepo port.DelegationRepository,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) DelegationService {
	return &delegationServiceImpl{
		documentRepo:   documentRepo,
		assignmentRepo: assignmentRepo,
		decisionRepo:   decisionRepo,
		delegationRepo: delegationRepo,
		txManager:      txManager,
		dispatcher:     d,
		logger:         logger,
	}
}

// Delegate grants substitute authority for the delegator's obligation
func (s *delegationServiceImpl) Delegate(ctx context.Context, documentID int64, delegatorID, substituteID string, expiresAt time.Time) (*entity.Delegation, error) {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc == nil {
		return nil, workflow.NewError(workflow.ErrNotFound).WithDocument(documentID, "")
	}

	if doc.Status != workflow.StateReview || doc.CurrentCycleID == nil {
		return nil, workflow.NewError(workflow.ErrInvalidTransition).
			WithDocument(doc.ID, doc.Status).
			WithAction("delegate").
			WithDetail("delegation is only allowed while the document is under review")
	}
	if substituteID == doc.AuthorID {
		return nil, workflow.NewError(workflow.ErrSelfApproval).
			WithDocument(doc.ID, doc.Status).
			WithField("substitute_id").
			WithDetail("the author cannot act as a substitute on their own document")
	}

	cycleID := *doc.CurrentCycleID
	assignment, err := s.assignmentRepo.GetByCycleAndReviewer(ctx, cycleID, delegatorID)
	if err != nil {
		return nil, fmt.Errorf("lookup assignment: %w", err)
	}
	if assignment == nil {
		return nil, workflow.NewError(workflow.ErrNotAnAssignedReviewer).
			WithDocument(doc.ID, doc.Status).
			WithField("delegator_id")
	}

	decided, err := s.decisionRepo.GetByCycleAndReviewer(ctx, cycleID, delegatorID)
	if err != nil {
		return nil, fmt.Errorf("lookup decision: %w", err)
	}
	if decided != nil {
		return nil, workflow.NewError(workflow.ErrAlreadyDecided).
			WithDocument(doc.ID, doc.Status).
			WithField("delegator_id")
	}

	now := time.Now().UTC()
	if !expiresAt.After(now) {
		return nil, workflow.NewError(workflow.ErrDelegationExpiryInPast).
			WithDocument(doc.ID, doc.Status).
			WithField("expires_at")
	}

	delegations, err := s.delegationRepo.ListByDocumentID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list delegations: %w", err)
	}
	for _, d := range delegations {
		if !d.ActiveAt(now) {
			continue
		}
		if d.DelegatorID == delegatorID {
			return nil, workflow.NewError(workflow.ErrAlreadyDelegated).
				WithDocument(doc.ID, doc.Status).
				WithDetail(fmt.Sprintf("active delegation to %q exists; revoke it first", d.SubstituteID))
		}
		// One hop only: an actor currently holding substitute authority
		// cannot hand it on
		if d.SubstituteID == delegatorID {
			return nil, workflow.NewError(workflow.ErrRedelegationNotAllowed).
				WithDocument(doc.ID, doc.Status).
				WithField("delegator_id").
				WithDetail(fmt.Sprintf("%q is acting as substitute for %q", delegatorID, d.DelegatorID))
		}
	}

	delegation := &entity.Delegation{
		DocumentID:   documentID,
		DelegatorID:  delegatorID,
		SubstituteID: substituteID,
		ExpiresAt:    expiresAt.UTC(),
		CreatedAt:    now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.delegationRepo.Create(txCtx, delegation); err != nil {
			return fmt.Errorf("create delegation: %w", err)
		}

		evt := event.New(event.TypeDelegationGranted, documentID, substituteID,
			fmt.Sprintf("You have been delegated review authority for document '%s' by '%s'", doc.Title, delegatorID)).
			WithPayload("delegator_id", delegatorID).
			WithPayload("expires_at", delegation.ExpiresAt.Format(time.RFC3339))
		return s.dispatcher.Dispatch(txCtx, evt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Delegation granted",
		"document_id", documentID,
		"delegator_id", delegatorID,
		"substitute_id", substituteID,
		"expires_at", delegation.ExpiresAt,
	)
	return delegation, nil
}

// Revoke withdraws the delegator's active delegation, succeeding even when
// there is nothing to revoke
func (s *delegationServiceImpl) Revoke(ctx context.Context, documentID int64, delegatorID string) error {
	delegation, err := s.delegationRepo.GetLatestByDelegator(ctx, documentID, delegatorID)
	if err != nil {
		return fmt.Errorf("lookup delegation: %w", err)
	}
	if delegation == nil || delegation.Revoked {
		s.logger.Info("Revoke with no active delegation, nothing to do",
			"document_id", documentID,
			"delegator_id", delegatorID,
		)
		return nil
	}

	now := time.Now().UTC()
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.delegationRepo.MarkRevoked(txCtx, delegation.ID, now); err != nil {
			return fmt.Errorf("revoke delegation: %w", err)
		}

		evt := event.New(event.TypeDelegationRevoked, documentID, delegation.SubstituteID,
			fmt.Sprintf("Your review delegation from '%s' has been revoked", delegatorID)).
			WithPayload("delegator_id", delegatorID)
		return s.dispatcher.Dispatch(txCtx, evt)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Delegation revoked",
		"document_id", documentID,
		"delegator_id", delegatorID,
		"substitute_id", delegation.SubstituteID,
	)
	return nil
}

// ResolveActiveSubstitution returns the substitute currently authorized to
// act for the reviewer, if any
func (s *delegationServiceImpl) ResolveActiveSubstitution(ctx context.Context, documentID int64, reviewerID string, now time.Time) (string, bool, error) {
	delegation, err := s.delegationRepo.GetLatestByDelegator(ctx, documentID, reviewerID)
	if err != nil {
		return "", false, fmt.Errorf("lookup delegation: %w", err)
	}
	if delegation == nil || !delegation.ActiveAt(now) {
		return "", false, nil
	}
	return delegation.SubstituteID, true, nil
}

// ResolveObligation maps an acting actor to the reviewer obligation it holds
func (s *delegationServiceImpl) ResolveObligation(ctx context.Context, documentID, cycleID int64, actorID string, now time.Time) (string, bool, error) {
	direct, err := s.assignmentRepo.GetByCycleAndReviewer(ctx, cycleID, actorID)
	if err != nil {
		return "", false, fmt.Errorf("lookup assignment: %w", err)
	}
	if direct != nil {
		return actorID, false, nil
	}

	delegations, err := s.delegationRepo.ListByDocumentID(ctx, documentID)
	if err != nil {
		return "", false, fmt.Errorf("list delegations: %w", err)
	}

	lapsed := false
	for _, d := range delegations {
		if d.SubstituteID != actorID || d.Revoked {
			continue
		}

		assignment, err := s.assignmentRepo.GetByCycleAndReviewer(ctx, cycleID, d.DelegatorID)
		if err != nil {
			return "", false, fmt.Errorf("lookup delegator assignment: %w", err)
		}
		if assignment == nil {
			continue
		}

		if d.ActiveAt(now) {
			return d.DelegatorID, true, nil
		}
		lapsed = true
	}

	if lapsed {
		return "", false, workflow.NewError(workflow.ErrDelegationExpired).
			WithDocument(documentID, "").
			WithField("acting_actor")
	}
	return "", false, workflow.NewError(workflow.ErrNotAReviewer).
		WithDocument(documentID, "").
		WithField("acting_actor")
}

// ListByDocument returns all delegations recorded for a document
func (s *delegationServiceImpl) ListByDocument(ctx context.Context, documentID int64) ([]*entity.Delegation, error) {
	return s.delegationRepo.ListByDocumentID(ctx, documentID)
}
