package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docflow-io/docflow/internal/application/port"
	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// CycleRepository implements port.CycleRepository
type CycleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCycleRepository creates a new cycle repository
func NewCycleRepository(db *sql.DB, logger *zap.Logger) port.CycleRepository {
	return &CycleRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new review cycle
func (r *CycleRepository) Create(ctx context.Context, cycle *entity.ReviewCycle) error {
	query := `
		INSERT INTO review_cycles (document_id, number, outcome, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		cycle.DocumentID,
		cycle.Number,
		string(cycle.Outcome),
		cycle.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create cycle", zap.Int64("document_id", cycle.DocumentID), zap.Error(err))
		return fmt.Errorf("failed to create cycle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	cycle.ID = id
	return nil
}

// GetByID retrieves a review cycle by ID
func (r *CycleRepository) GetByID(ctx context.Context, id int64) (*entity.ReviewCycle, error) {
	query := `
		SELECT id, document_id, number, outcome, created_at
		FROM review_cycles
		WHERE id = ?
	`

	var cycle entity.ReviewCycle
	var outcome string
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&cycle.ID,
		&cycle.DocumentID,
		&cycle.Number,
		&outcome,
		&cycle.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get cycle by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}

	cycle.Outcome = entity.Outcome(outcome)
	return &cycle, nil
}

// ListByDocumentID retrieves all review cycles of a document in cycle order
func (r *CycleRepository) ListByDocumentID(ctx context.Context, documentID int64) ([]*entity.ReviewCycle, error) {
	query := `
		SELECT id, document_id, number, outcome, created_at
		FROM review_cycles
		WHERE document_id = ?
		ORDER BY number ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to list cycles", zap.Int64("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*entity.ReviewCycle
	for rows.Next() {
		var cycle entity.ReviewCycle
		var outcome string
		if err := rows.Scan(&cycle.ID, &cycle.DocumentID, &cycle.Number, &outcome, &cycle.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		cycle.Outcome = entity.Outcome(outcome)
		cycles = append(cycles, &cycle)
	}
	return cycles, rows.Err()
}

// UpdateOutcome sets the terminal outcome of a cycle
func (r *CycleRepository) UpdateOutcome(ctx context.Context, id int64, outcome entity.Outcome) error {
	query := `UPDATE review_cycles SET outcome = ? WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, string(outcome), id)
	if err != nil {
		r.logger.Error("Failed to update cycle outcome", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update cycle outcome: %w", err)
	}
	return nil
}

// getExecutor returns the caller's transaction when present
func (r *CycleRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.CycleRepository = (*CycleRepository)(nil)
