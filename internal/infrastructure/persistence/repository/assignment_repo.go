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

// AssignmentRepository implements port.AssignmentRepository
type AssignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB, logger *zap.Logger) port.AssignmentRepository {
	return &AssignmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new reviewer assignment
func (r *AssignmentRepository) Create(ctx context.Context, assignment *entity.ReviewerAssignment) error {
	query := `
		INSERT INTO reviewer_assignments (cycle_id, reviewer_id, escalated, assigned_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		assignment.CycleID,
		assignment.ReviewerID,
		assignment.Escalated,
		assignment.AssignedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create assignment",
			zap.Int64("cycle_id", assignment.CycleID),
			zap.String("reviewer_id", assignment.ReviewerID),
			zap.Error(err))
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	assignment.ID = id
	return nil
}

// GetByCycleAndReviewer retrieves a reviewer's assignment within a cycle
func (r *AssignmentRepository) GetByCycleAndReviewer(ctx context.Context, cycleID int64, reviewerID string) (*entity.ReviewerAssignment, error) {
	query := `
		SELECT id, cycle_id, reviewer_id, escalated, assigned_at
		FROM reviewer_assignments
		WHERE cycle_id = ? AND reviewer_id = ?
	`

	var a entity.ReviewerAssignment
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, cycleID, reviewerID).Scan(
		&a.ID,
		&a.CycleID,
		&a.ReviewerID,
		&a.Escalated,
		&a.AssignedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get assignment",
			zap.Int64("cycle_id", cycleID),
			zap.String("reviewer_id", reviewerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

// ListByCycleID retrieves all assignments of a cycle in assignment order
func (r *AssignmentRepository) ListByCycleID(ctx context.Context, cycleID int64) ([]*entity.ReviewerAssignment, error) {
	query := `
		SELECT id, cycle_id, reviewer_id, escalated, assigned_at
		FROM reviewer_assignments
		WHERE cycle_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, cycleID)
	if err != nil {
		r.logger.Error("Failed to list assignments", zap.Int64("cycle_id", cycleID), zap.Error(err))
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*entity.ReviewerAssignment
	for rows.Next() {
		var a entity.ReviewerAssignment
		if err := rows.Scan(&a.ID, &a.CycleID, &a.ReviewerID, &a.Escalated, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

// getExecutor returns the caller's transaction when present
func (r *AssignmentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.AssignmentRepository = (*AssignmentRepository)(nil)
