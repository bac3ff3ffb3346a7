package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docflow-io/docflow/internal/application/service"
	"github.com/docflow-io/docflow/internal/domain/workflow"
)

// EscalationWorkerConfig holds configuration for the escalation worker
type EscalationWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultEscalationWorkerConfig returns default configuration
func DefaultEscalationWorkerConfig() EscalationWorkerConfig {
	return EscalationWorkerConfig{
		PollInterval: time.Minute,
		BatchSize:    100,
	}
}

// EscalationWorker periodically sweeps documents under review and
// escalates reviewers whose response window has elapsed.
type EscalationWorker struct {
	config   EscalationWorkerConfig
	approval service.ApprovalService
	logger   *zap.Logger

	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isRunning      bool
	escalatedCount int
	lastError      error
}

// NewEscalationWorker creates a new escalation worker
func NewEscalationWorker(
	config EscalationWorkerConfig,
	approval service.ApprovalService,
	logger *zap.Logger,
) *EscalationWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultEscalationWorkerConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultEscalationWorkerConfig().BatchSize
	}
	return &EscalationWorker{
		config:   config,
		approval: approval,
		logger:   logger,
	}
}

// Start begins the worker polling loop
func (w *EscalationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("escalation worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("EscalationWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop()

	return nil
}

// Stop gracefully terminates the worker
func (w *EscalationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}

	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("EscalationWorker stopped",
		zap.Int("escalated_count", w.escalatedCount))

	return nil
}

// Name returns the worker name for identification
func (w *EscalationWorker) Name() string {
	return "EscalationWorker"
}

func (w *EscalationWorker) pollLoop() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Poll loop context cancelled")
			return

		case <-ticker.C:
			if err := w.sweep(); err != nil {
				w.mu.Lock()
				w.lastError = err
				w.mu.Unlock()
				w.logger.Error("Escalation sweep failed", zap.Error(err))
			}
		}
	}
}

// sweep walks documents in review and evaluates their escalation timers.
// Pages through the full set so a large backlog is not starved by the
// batch size.
func (w *EscalationWorker) sweep() error {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC()
	offset := 0

	for {
		docs, err := w.approval.List(ctx, workflow.StateReview, w.config.BatchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list documents under review: %w", err)
		}
		if len(docs) == 0 {
			return nil
		}

		for _, doc := range docs {
			records, err := w.approval.CheckEscalation(ctx, doc.ID, now)
			if err != nil {
				w.logger.Warn("Failed to evaluate escalation",
					zap.Int64("document_id", doc.ID),
					zap.Error(err))
				continue
			}

			if len(records) > 0 {
				w.mu.Lock()
				w.escalatedCount += len(records)
				w.mu.Unlock()

				w.logger.Info("Escalations triggered",
					zap.Int64("document_id", doc.ID),
					zap.Int("count", len(records)))
			}
		}

		if len(docs) < w.config.BatchSize {
			return nil
		}
		offset += w.config.BatchSize
	}
}
