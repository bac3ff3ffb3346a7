package service

import (
	"context"
	"fmt"

	"github.com/docflow-io/docflow/internal/application/dispatcher"
	"github.com/docflow-io/docflow/internal/application/port"
	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/domain/event"
	"github.com/docflow-io/docflow/internal/metrics"
)

// NotificationService records emitted notification events for the external
// delivery collaborator. The engine never delivers anything itself.
type NotificationService interface {
	// Record persists a notification event
	Record(ctx context.Context, evt *event.Event) error

	// List returns notifications for a recipient, optionally scoped to one
	// document (documentID 0 means all documents)
	List(ctx context.Context, recipientID string, documentID int64) ([]*entity.Notification, error)

	// RegisterHandlers subscribes the service to every notification-bearing
	// event type. Handlers run synchronously inside the emitting transaction,
	// so a recorded notification commits or rolls back with its cause.
	RegisterHandlers(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	logger           Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notificationRepo port.NotificationRepository, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// Record persists a notification event
func (s *notificationServiceImpl) Record(ctx context.Context, evt *event.Event) error {
	notification := &entity.Notification{
		RecipientID: evt.RecipientID,
		DocumentID:  evt.DocumentID,
		EventType:   evt.Type.String(),
		Message:     evt.Message,
		CreatedAt:   evt.Timestamp,
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	metrics.NotificationsTotal.WithLabelValues(evt.Type.String()).Inc()
	s.logger.Info("Notification recorded",
		"event_type", evt.Type,
		"document_id", evt.DocumentID,
		"recipient_id", evt.RecipientID,
	)
	return nil
}

// List returns notifications for a recipient
func (s *notificationServiceImpl) List(ctx context.Context, recipientID string, documentID int64) ([]*entity.Notification, error) {
	return s.notificationRepo.ListByRecipient(ctx, recipientID, documentID)
}

// RegisterHandlers subscribes the service to every notification-bearing event type
func (s *notificationServiceImpl) RegisterHandlers(d dispatcher.Dispatcher) {
	for _, eventType := range []event.Type{
		event.TypeReviewerAssigned,
		event.TypeDocumentApproved,
		event.TypeDocumentRejected,
		event.TypeDocumentEscalated,
		event.TypeDelegationGranted,
		event.TypeDelegationRevoked,
	} {
		d.Subscribe(eventType, "notification_recorder", s.Record)
	}
}
