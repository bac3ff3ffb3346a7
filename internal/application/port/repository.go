package port

import (
	"context"
	"time"

	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/domain/workflow"
)

// DocumentRepository defines persistence operations for Document
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id int64) (*entity.Document, error)
	UpdateContent(ctx context.Context, id int64, title, content string) error
	UpdateStatus(ctx context.Context, id int64, status workflow.State, currentCycleID *int64) error
	SetEscalationDepth(ctx context.Context, id int64, depth int) error
	List(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.Document, error)
}

// CycleRepository defines persistence operations for ReviewCycle
type CycleRepository interface {
	Create(ctx context.Context, cycle *entity.ReviewCycle) error
	GetByID(ctx context.Context, id int64) (*entity.ReviewCycle, error)
	ListByDocumentID(ctx context.Context, documentID int64) ([]*entity.ReviewCycle, error)
	UpdateOutcome(ctx context.Context, id int64, outcome entity.Outcome) error
}

// AssignmentRepository defines persistence operations for ReviewerAssignment.
// Assignments are append-only within a cycle.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *entity.ReviewerAssignment) error
	GetByCycleAndReviewer(ctx context.Context, cycleID int64, reviewerID string) (*entity.ReviewerAssignment, error)
	ListByCycleID(ctx context.Context, cycleID int64) ([]*entity.ReviewerAssignment, error)
}

// DecisionRepository defines persistence operations for Decision.
// Decisions are insert-only; no update or delete operation exists.
type DecisionRepository interface {
	Create(ctx context.Context, decision *entity.Decision) error
	GetByCycleAndReviewer(ctx context.Context, cycleID int64, reviewerID string) (*entity.Decision, error)
	ListByCycleID(ctx context.Context, cycleID int64) ([]*entity.Decision, error)
}

// DelegationRepository defines persistence operations for Delegation
type DelegationRepository interface {
	Create(ctx context.Context, delegation *entity.Delegation) error
	GetLatestByDelegator(ctx context.Context, documentID int64, delegatorID string) (*entity.Delegation, error)
	ListByDocumentID(ctx context.Context, documentID int64) ([]*entity.Delegation, error)
	MarkRevoked(ctx context.Context, id int64, revokedAt time.Time) error
}

// EscalationRepository defines persistence operations for EscalationRecord
type EscalationRepository interface {
	Create(ctx context.Context, record *entity.EscalationRecord) error
	ListByCycleID(ctx context.Context, cycleID int64) ([]*entity.EscalationRecord, error)
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, documentID int64) ([]*entity.Notification, error)
}

// TransactionManager runs a function inside a storage transaction. A failed
// commit must leave no partial state; every engine mutation is all-or-nothing.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
