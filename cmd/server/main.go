package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/docflow-io/docflow/internal/application/dispatcher"
	"github.com/docflow-io/docflow/internal/application/service"
	"github.com/docflow-io/docflow/internal/config"
	"github.com/docflow-io/docflow/internal/infrastructure/persistence/repository"
	"github.com/docflow-io/docflow/internal/infrastructure/persistence/sqlite"
	"github.com/docflow-io/docflow/internal/infrastructure/worker"
	httpserver "github.com/docflow-io/docflow/internal/interfaces/http"
	"github.com/docflow-io/docflow/pkg/database"
	"github.com/docflow-io/docflow/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting document approval workflow engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Transaction manager shares the pool with the repositories
	txManager := sqlite.NewDB(db.DB, logger)

	// Initialize repositories
	documentRepo := repository.NewDocumentRepository(db.DB, logger)
	cycleRepo := repository.NewCycleRepository(db.DB, logger)
	assignmentRepo := repository.NewAssignmentRepository(db.DB, logger)
	decisionRepo := repository.NewDecisionRepository(db.DB, logger)
	delegationRepo := repository.NewDelegationRepository(db.DB, logger)
	escalationRepo := repository.NewEscalationRepository(db.DB, logger)
	notificationRepo := repository.NewNotificationRepository(db.DB, logger)

	serviceLogger := &zapLoggerAdapter{logger: logger}

	// Initialize event dispatcher and notification persistence
	eventDispatcher := dispatcher.NewDispatcher(dispatcher.WithLogger(serviceLogger))
	notificationService := service.NewNotificationService(notificationRepo, serviceLogger)
	notificationService.RegisterHandlers(eventDispatcher)

	// Initialize services
	ledgerService := service.NewLedgerService(assignmentRepo, decisionRepo, serviceLogger)
	delegationService := service.NewDelegationService(
		documentRepo,
		assignmentRepo,
		decisionRepo,
		delegationRepo,
		txManager,
		eventDispatcher,
		serviceLogger,
	)
	escalationService := service.NewEscalationService(
		documentRepo,
		assignmentRepo,
		decisionRepo,
		escalationRepo,
		eventDispatcher,
		cfg.Workflow.DefaultEscalationTimeout,
		cfg.Workflow.EscalationApprovers,
		serviceLogger,
	)
	approvalService := service.NewApprovalService(
		documentRepo,
		cycleRepo,
		assignmentRepo,
		decisionRepo,
		escalationRepo,
		ledgerService,
		delegationService,
		escalationService,
		txManager,
		eventDispatcher,
		service.WorkflowSettings{
			DefaultEscalationTimeout: cfg.Workflow.DefaultEscalationTimeout,
			MaxEscalationDepth:       cfg.Workflow.MaxEscalationDepth,
			EscalationApprovers:      cfg.Workflow.EscalationApprovers,
		},
		serviceLogger,
	)

	// Initialize background workers
	workerManager := worker.NewWorkerManager(logger)
	workerManager.Register(worker.NewEscalationWorker(
		worker.EscalationWorkerConfig{
			PollInterval: cfg.Worker.EscalationPollInterval,
			BatchSize:    100,
		},
		approvalService,
		logger,
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// Initialize HTTP server
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		approvalService,
		delegationService,
		notificationService,
		serviceLogger,
	)

	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	cancel()

	if err := server.Stop(); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := workerManager.StopAll(); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// zapLoggerAdapter adapts *zap.Logger to the key/value logger interface
// used by the application services.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues)...)
}

func convertToZapFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
