package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docflow-io/docflow/internal/application/port"
	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// DelegationRepository implements port.DelegationRepository. Expired rows are
// never deleted or swept; the service layer checks expiry on read.
type DelegationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDelegationRepository creates a new delegation repository
func NewDelegationRepository(db *sql.DB, logger *zap.Logger) port.DelegationRepository {
	return &DelegationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new delegation
func (r *DelegationRepository) Create(ctx context.Context, delegation *entity.Delegation) error {
	query := `
		INSERT INTO delegations (document_id, delegator_id, substitute_id, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		delegation.DocumentID,
		delegation.DelegatorID,
		delegation.SubstituteID,
		delegation.ExpiresAt,
		delegation.Revoked,
		delegation.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create delegation",
			zap.Int64("document_id", delegation.DocumentID),
			zap.String("delegator_id", delegation.DelegatorID),
			zap.Error(err))
		return fmt.Errorf("failed to create delegation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	delegation.ID = id
	return nil
}

// GetLatestByDelegator retrieves the most recent delegation by a delegator
// on a document
func (r *DelegationRepository) GetLatestByDelegator(ctx context.Context, documentID int64, delegatorID string) (*entity.Delegation, error) {
	query := `
		SELECT id, document_id, delegator_id, substitute_id, expires_at, revoked, revoked_at, created_at
		FROM delegations
		WHERE document_id = ? AND delegator_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	d, err := scanDelegation(r.getExecutor(ctx).QueryRowContext(ctx, query, documentID, delegatorID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get delegation",
			zap.Int64("document_id", documentID),
			zap.String("delegator_id", delegatorID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get delegation: %w", err)
	}
	return d, nil
}

// ListByDocumentID retrieves all delegations recorded for a document
func (r *DelegationRepository) ListByDocumentID(ctx context.Context, documentID int64) ([]*entity.Delegation, error) {
	query := `
		SELECT id, document_id, delegator_id, substitute_id, expires_at, revoked, revoked_at, created_at
		FROM delegations
		WHERE document_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to list delegations", zap.Int64("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	var delegations []*entity.Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		delegations = append(delegations, d)
	}
	return delegations, rows.Err()
}

// MarkRevoked marks a delegation as revoked
func (r *DelegationRepository) MarkRevoked(ctx context.Context, id int64, revokedAt time.Time) error {
	query := `UPDATE delegations SET revoked = 1, revoked_at = ? WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, revokedAt, id)
	if err != nil {
		r.logger.Error("Failed to revoke delegation", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to revoke delegation: %w", err)
	}
	return nil
}

func scanDelegation(row rowScanner) (*entity.Delegation, error) {
	var d entity.Delegation
	var revokedAt sql.NullTime

	err := row.Scan(
		&d.ID,
		&d.DocumentID,
		&d.DelegatorID,
		&d.SubstituteID,
		&d.ExpiresAt,
		&d.Revoked,
		&revokedAt,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		d.RevokedAt = &revokedAt.Time
	}
	return &d, nil
}

// getExecutor returns the caller's transaction when present
func (r *DelegationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.DelegationRepository = (*DelegationRepository)(nil)
