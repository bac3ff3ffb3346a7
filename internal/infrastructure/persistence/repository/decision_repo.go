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

// DecisionRepository implements port.DecisionRepository. The decisions table
// is insert-only; the unique (cycle_id, reviewer_id) index backs the
// write-once guarantee at the storage layer.
type DecisionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(db *sql.DB, logger *zap.Logger) port.DecisionRepository {
	return &DecisionRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a decision
func (r *DecisionRepository) Create(ctx context.Context, decision *entity.Decision) error {
	query := `
		INSERT INTO decisions (cycle_id, reviewer_id, actor_id, verdict, reason, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		decision.CycleID,
		decision.ReviewerID,
		decision.ActorID,
		string(decision.Verdict),
		decision.Reason,
		decision.DecidedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create decision",
			zap.Int64("cycle_id", decision.CycleID),
			zap.String("reviewer_id", decision.ReviewerID),
			zap.Error(err))
		return fmt.Errorf("failed to create decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	decision.ID = id
	return nil
}

// GetByCycleAndReviewer retrieves a reviewer's decision within a cycle
func (r *DecisionRepository) GetByCycleAndReviewer(ctx context.Context, cycleID int64, reviewerID string) (*entity.Decision, error) {
	query := `
		SELECT id, cycle_id, reviewer_id, actor_id, verdict, reason, decided_at
		FROM decisions
		WHERE cycle_id = ? AND reviewer_id = ?
	`

	var d entity.Decision
	var verdict string
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, cycleID, reviewerID).Scan(
		&d.ID,
		&d.CycleID,
		&d.ReviewerID,
		&d.ActorID,
		&verdict,
		&d.Reason,
		&d.DecidedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get decision",
			zap.Int64("cycle_id", cycleID),
			zap.String("reviewer_id", reviewerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}

	d.Verdict = entity.Verdict(verdict)
	return &d, nil
}

// ListByCycleID retrieves all decisions of a cycle in decision order
func (r *DecisionRepository) ListByCycleID(ctx context.Context, cycleID int64) ([]*entity.Decision, error) {
	query := `
		SELECT id, cycle_id, reviewer_id, actor_id, verdict, reason, decided_at
		FROM decisions
		WHERE cycle_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, cycleID)
	if err != nil {
		r.logger.Error("Failed to list decisions", zap.Int64("cycle_id", cycleID), zap.Error(err))
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*entity.Decision
	for rows.Next() {
		var d entity.Decision
		var verdict string
		if err := rows.Scan(&d.ID, &d.CycleID, &d.ReviewerID, &d.ActorID, &verdict, &d.Reason, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Verdict = entity.Verdict(verdict)
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}

// getExecutor returns the caller's transaction when present
func (r *DecisionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.DecisionRepository = (*DecisionRepository)(nil)
