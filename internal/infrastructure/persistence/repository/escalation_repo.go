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

// EscalationRepository implements port.EscalationRepository
type EscalationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEscalationRepository creates a new escalation repository
func NewEscalationRepository(db *sql.DB, logger *zap.Logger) port.EscalationRepository {
	return &EscalationRepository{
		db:     db,
		logger: logger,
	}
}

// Create records an escalation
func (r *EscalationRepository) Create(ctx context.Context, record *entity.EscalationRecord) error {
	query := `
		INSERT INTO escalations (document_id, cycle_id, depth, escalated_from, escalated_to, triggered_at, timeout_applied_secs)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.DocumentID,
		record.CycleID,
		record.Depth,
		record.EscalatedFrom,
		record.EscalatedTo,
		record.TriggeredAt,
		int64(record.TimeoutApplied/time.Second),
	)
	if err != nil {
		r.logger.Error("Failed to create escalation record",
			zap.Int64("document_id", record.DocumentID),
			zap.Int64("cycle_id", record.CycleID),
			zap.Error(err))
		return fmt.Errorf("failed to create escalation record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// ListByCycleID retrieves all escalations of a cycle in trigger order
func (r *EscalationRepository) ListByCycleID(ctx context.Context, cycleID int64) ([]*entity.EscalationRecord, error) {
	query := `
		SELECT id, document_id, cycle_id, depth, escalated_from, escalated_to, triggered_at, timeout_applied_secs
		FROM escalations
		WHERE cycle_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, cycleID)
	if err != nil {
		r.logger.Error("Failed to list escalations", zap.Int64("cycle_id", cycleID), zap.Error(err))
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	var records []*entity.EscalationRecord
	for rows.Next() {
		var record entity.EscalationRecord
		var timeoutSeconds int64
		err := rows.Scan(
			&record.ID,
			&record.DocumentID,
			&record.CycleID,
			&record.Depth,
			&record.EscalatedFrom,
			&record.EscalatedTo,
			&record.TriggeredAt,
			&timeoutSeconds,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation record: %w", err)
		}
		record.TimeoutApplied = time.Duration(timeoutSeconds) * time.Second
		records = append(records, &record)
	}
	return records, rows.Err()
}

// getExecutor returns the caller's transaction when present
func (r *EscalationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.EscalationRepository = (*EscalationRepository)(nil)
