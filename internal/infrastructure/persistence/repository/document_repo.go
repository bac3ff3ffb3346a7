package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docflow-io/docflow/internal/application/port"
	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/domain/workflow"
	"github.com/docflow-io/docflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

const documentColumns = `
	id, title, content, author_id, status, current_cycle_id,
	escalation_timeout_secs, escalation_depth, max_escalation_depth,
	escalation_approvers, created_at, updated_at
`

// Create creates a new document
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	query := `
		INSERT INTO documents (
			title, content, author_id, status, escalation_timeout_secs,
			escalation_depth, max_escalation_depth, escalation_approvers,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	approvers, err := json.Marshal(doc.EscalationApprovers)
	if err != nil {
		return fmt.Errorf("failed to encode escalation approvers: %w", err)
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		doc.Title,
		doc.Content,
		doc.AuthorID,
		doc.Status.String(),
		timeoutSecs(doc.EscalationTimeout),
		doc.EscalationDepth,
		doc.MaxEscalationDepth,
		string(approvers),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	doc.ID = id
	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	doc, err := scanDocument(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// UpdateContent updates a document's title and content
func (r *DocumentRepository) UpdateContent(ctx context.Context, id int64, title, content string) error {
	query := `UPDATE documents SET title = ?, content = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, title, content, id)
	if err != nil {
		r.logger.Error("Failed to update content", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update content: %w", err)
	}
	return nil
}

// UpdateStatus updates a document's status and current cycle pointer
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id int64, status workflow.State, currentCycleID *int64) error {
	query := `UPDATE documents SET status = ?, current_cycle_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, status.String(), currentCycleID, id)
	if err != nil {
		r.logger.Error("Failed to update status", zap.Int64("id", id), zap.String("status", status.String()), zap.Error(err))
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

// SetEscalationDepth updates the escalation depth counter
func (r *DocumentRepository) SetEscalationDepth(ctx context.Context, id int64, depth int) error {
	query := `UPDATE documents SET escalation_depth = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, depth, id)
	if err != nil {
		r.logger.Error("Failed to set escalation depth", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set escalation depth: %w", err)
	}
	return nil
}

// List retrieves documents with optional status filter and pagination
func (r *DocumentRepository) List(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status.String())
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var doc entity.Document
	var currentCycleID sql.NullInt64
	var timeoutSeconds sql.NullInt64
	var status string
	var approvers string

	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Content,
		&doc.AuthorID,
		&status,
		&currentCycleID,
		&timeoutSeconds,
		&doc.EscalationDepth,
		&doc.MaxEscalationDepth,
		&approvers,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Status = workflow.State(status)
	if currentCycleID.Valid {
		doc.CurrentCycleID = &currentCycleID.Int64
	}
	if timeoutSeconds.Valid {
		d := time.Duration(timeoutSeconds.Int64) * time.Second
		doc.EscalationTimeout = &d
	}
	if approvers != "" {
		if err := json.Unmarshal([]byte(approvers), &doc.EscalationApprovers); err != nil {
			return nil, fmt.Errorf("failed to decode escalation approvers: %w", err)
		}
	}
	return &doc, nil
}

// timeoutSecs converts the optional timeout to a nullable column value.
// A present zero is stored as 0, which is distinct from NULL.
func timeoutSecs(d *time.Duration) interface{} {
	if d == nil {
		return nil
	}
	return int64(*d / time.Second)
}

// getExecutor returns the caller's transaction when present
func (r *DocumentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
