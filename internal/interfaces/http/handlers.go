package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docflow-io/docflow/internal/application/service"
	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvalService     service.ApprovalService
	delegationService   service.DelegationService
	notificationService service.NotificationService
	logger              Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	approvalService service.ApprovalService,
	delegationService service.DelegationService,
	notificationService service.NotificationService,
	logger Logger,
) *Handlers {
	return &Handlers{
		approvalService:     approvalService,
		delegationService:   delegationService,
		notificationService: notificationService,
		logger:              logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID                  int64    `json:"id"`
	Title               string   `json:"title"`
	Content             string   `json:"content"`
	AuthorID            string   `json:"author_id"`
	Status              string   `json:"status"`
	CurrentCycleID      *int64   `json:"current_cycle_id,omitempty"`
	EscalationTimeout   *string  `json:"escalation_timeout,omitempty"`
	EscalationDepth     int      `json:"escalation_depth"`
	MaxEscalationDepth  int      `json:"max_escalation_depth"`
	EscalationApprovers []string `json:"escalation_approvers,omitempty"`
	CreatedAt           string   `json:"created_at"`
	UpdatedAt           string   `json:"updated_at"`
}

// CreateDocumentRequest is the body of POST /api/documents
type CreateDocumentRequest struct {
	AuthorID            string   `json:"author_id" binding:"required"`
	Title               string   `json:"title" binding:"required"`
	Content             string   `json:"content"`
	EscalationTimeout   *string  `json:"escalation_timeout"`
	MaxEscalationDepth  int      `json:"max_escalation_depth"`
	EscalationApprovers []string `json:"escalation_approvers"`
}

// EditDocumentRequest is the body of PUT /api/documents/:id
type EditDocumentRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

// SubmitDocumentRequest is the body of POST /api/documents/:id/submit
type SubmitDocumentRequest struct {
	ActorID     string   `json:"actor_id" binding:"required"`
	ReviewerIDs []string `json:"reviewer_ids"`
}

// ResubmitDocumentRequest is the body of POST /api/documents/:id/resubmit
type ResubmitDocumentRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

// DecisionRequest is the body of POST /api/documents/:id/decisions
type DecisionRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
	Verdict string `json:"verdict" binding:"required"`
	Reason  string `json:"reason"`
}

// DelegationRequest is the body of POST /api/documents/:id/delegations
type DelegationRequest struct {
	DelegatorID  string    `json:"delegator_id" binding:"required"`
	SubstituteID string    `json:"substitute_id" binding:"required"`
	ExpiresAt    time.Time `json:"expires_at" binding:"required"`
}

// EscalationRequest is the body of POST /api/documents/:id/escalations
type EscalationRequest struct {
	ApproverID string `json:"approver_id" binding:"required"`
}

// ListDocumentsRequest represents query parameters for listing documents
type ListDocumentsRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateDocument handles POST /api/documents
func (h *Handlers) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	opts := service.CreateOptions{
		MaxEscalationDepth:  req.MaxEscalationDepth,
		EscalationApprovers: req.EscalationApprovers,
	}
	if req.EscalationTimeout != nil {
		d, err := time.ParseDuration(*req.EscalationTimeout)
		if err != nil || d < 0 {
			h.badRequest(c, "invalid escalation_timeout", err)
			return
		}
		opts.EscalationTimeout = &d
	}

	doc, err := h.approvalService.Create(c.Request.Context(), req.AuthorID, req.Title, req.Content, opts)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toDocumentResponse(doc),
	})
}

// GetDocument handles GET /api/documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	doc, err := h.approvalService.Get(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDocumentResponse(doc),
	})
}

// ListDocuments handles GET /api/documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	var req ListDocumentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	status := workflow.State(req.Status)
	if req.Status != "" && !status.IsValid() {
		h.badRequest(c, "invalid status filter", nil)
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	docs, err := h.approvalService.List(c.Request.Context(), status, req.Limit, req.Offset)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	responses := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, toDocumentResponse(doc))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// EditDocument handles PUT /api/documents/:id
func (h *Handlers) EditDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req EditDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	doc, err := h.approvalService.Edit(c.Request.Context(), id, req.ActorID, req.Title, req.Content)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDocumentResponse(doc),
	})
}

// SubmitDocument handles POST /api/documents/:id/submit
func (h *Handlers) SubmitDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req SubmitDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	doc, err := h.approvalService.Submit(c.Request.Context(), id, req.ActorID, req.ReviewerIDs)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDocumentResponse(doc),
	})
}

// ResubmitDocument handles POST /api/documents/:id/resubmit
func (h *Handlers) ResubmitDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req ResubmitDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	doc, err := h.approvalService.Resubmit(c.Request.Context(), id, req.ActorID)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDocumentResponse(doc),
	})
}

// RecordDecision handles POST /api/documents/:id/decisions
func (h *Handlers) RecordDecision(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	verdict := entity.Verdict(req.Verdict)
	if !verdict.IsValid() {
		h.badRequest(c, "verdict must be approve or reject", nil)
		return
	}

	doc, err := h.approvalService.Decide(c.Request.Context(), id, req.ActorID, verdict, req.Reason)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDocumentResponse(doc),
	})
}

// GetHistory handles GET /api/documents/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	history, err := h.approvalService.History(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    history,
	})
}

// GetPendingReviewers handles GET /api/documents/:id/reviewers/pending
func (h *Handlers) GetPendingReviewers(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	pending, err := h.approvalService.PendingReviewers(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    pending,
	})
}

// CreateDelegation handles POST /api/documents/:id/delegations
func (h *Handlers) CreateDelegation(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req DelegationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	delegation, err := h.delegationService.Delegate(c.Request.Context(), id, req.DelegatorID, req.SubstituteID, req.ExpiresAt)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    delegation,
	})
}

// ListDelegations handles GET /api/documents/:id/delegations
func (h *Handlers) ListDelegations(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	delegations, err := h.delegationService.ListByDocument(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    delegations,
	})
}

// RevokeDelegation handles DELETE /api/documents/:id/delegations/:delegator
func (h *Handlers) RevokeDelegation(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	delegatorID := c.Param("delegator")

	if err := h.delegationService.Revoke(c.Request.Context(), id, delegatorID); err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// TriggerEscalation handles POST /api/documents/:id/escalations
func (h *Handlers) TriggerEscalation(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req EscalationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	record, err := h.approvalService.TriggerEscalation(c.Request.Context(), id, req.ApproverID, time.Now().UTC())
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    record,
	})
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		h.badRequest(c, "recipient_id is required", nil)
		return
	}

	var documentID int64
	if raw := c.Query("document_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.badRequest(c, "invalid document_id", err)
			return
		}
		documentID = parsed
	}

	notifications, err := h.notificationService.List(c.Request.Context(), recipientID, documentID)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    notifications,
	})
}

// documentID parses the :id path parameter, replying 400 on failure
func (h *Handlers) documentID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.badRequest(c, "invalid document ID", err)
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err)
	}
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

// serviceError maps workflow error kinds to HTTP status codes
func (h *Handlers) serviceError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(status, Response{
			Success: false,
			Error:   "internal error",
		})
		return
	}

	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, workflow.ErrMissingReviewers),
		errors.Is(err, workflow.ErrDecisionRequiresReason),
		errors.Is(err, workflow.ErrDelegationExpiryInPast):
		return http.StatusBadRequest

	case errors.Is(err, workflow.ErrSelfApproval),
		errors.Is(err, workflow.ErrNotAReviewer),
		errors.Is(err, workflow.ErrNotDocumentAuthor),
		errors.Is(err, workflow.ErrNotAnAssignedReviewer),
		errors.Is(err, workflow.ErrRedelegationNotAllowed),
		errors.Is(err, workflow.ErrDelegationExpired):
		return http.StatusForbidden

	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrDocumentLocked),
		errors.Is(err, workflow.ErrUnderReview),
		errors.Is(err, workflow.ErrDuplicateDecision),
		errors.Is(err, workflow.ErrDecisionImmutable),
		errors.Is(err, workflow.ErrAlreadyDelegated),
		errors.Is(err, workflow.ErrAlreadyDecided),
		errors.Is(err, workflow.ErrMaxEscalationDepth),
		errors.Is(err, workflow.ErrReviewerAlreadyAssigned):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// toDocumentResponse converts a domain entity to the API representation
func toDocumentResponse(doc *entity.Document) DocumentResponse {
	resp := DocumentResponse{
		ID:                  doc.ID,
		Title:               doc.Title,
		Content:             doc.Content,
		AuthorID:            doc.AuthorID,
		Status:              doc.Status.String(),
		CurrentCycleID:      doc.CurrentCycleID,
		EscalationDepth:     doc.EscalationDepth,
		MaxEscalationDepth:  doc.MaxEscalationDepth,
		EscalationApprovers: doc.EscalationApprovers,
		CreatedAt:           doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           doc.UpdatedAt.Format(time.RFC3339),
	}

	if doc.EscalationTimeout != nil {
		timeout := doc.EscalationTimeout.String()
		resp.EscalationTimeout = &timeout
	}

	return resp
}
