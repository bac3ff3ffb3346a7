package service

import (
	"context"
	"time"

	"github.com/docflow-io/docflow/internal/application/dispatcher"
	"github.com/docflow-io/docflow/internal/domain/entity"
	"github.com/docflow-io/docflow/internal/domain/workflow"
)

// Stateful in-memory repositories shared by the service tests. They keep the
// same ordering guarantees as the sqlite implementations: list methods return
// rows in insertion order.

type memDocumentRepo struct {
	docs   map[int64]*entity.Document
	nextID int64
}

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{docs: make(map[int64]*entity.Document), nextID: 1}
}

func (m *memDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	doc.ID = m.nextID
	m.nextID++
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocumentRepo) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocumentRepo) UpdateContent(ctx context.Context, id int64, title, content string) error {
	m.docs[id].Title = title
	m.docs[id].Content = content
	return nil
}

func (m *memDocumentRepo) UpdateStatus(ctx context.Context, id int64, status workflow.State, currentCycleID *int64) error {
	m.docs[id].Status = status
	m.docs[id].CurrentCycleID = currentCycleID
	return nil
}

func (m *memDocumentRepo) SetEscalationDepth(ctx context.Context, id int64, depth int) error {
	m.docs[id].EscalationDepth = depth
	return nil
}

func (m *memDocumentRepo) List(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.Document, error) {
	var out []*entity.Document
	for id := int64(1); id < m.nextID; id++ {
		doc, ok := m.docs[id]
		if !ok {
			continue
		}
		if status != "" && doc.Status != status {
			continue
		}
		cp := *doc
		out = append(out, &cp)
	}
	return out, nil
}

type memCycleRepo struct {
	cycles []*entity.ReviewCycle
	nextID int64
}

func newMemCycleRepo() *memCycleRepo { return &memCycleRepo{nextID: 1} }

func (m *memCycleRepo) Create(ctx context.Context, cycle *entity.ReviewCycle) error {
	cycle.ID = m.nextID
	m.nextID++
	cp := *cycle
	m.cycles = append(m.cycles, &cp)
	return nil
}

func (m *memCycleRepo) GetByID(ctx context.Context, id int64) (*entity.ReviewCycle, error) {
	for _, c := range m.cycles {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCycleRepo) ListByDocumentID(ctx context.Context, documentID int64) ([]*entity.ReviewCycle, error) {
	var out []*entity.ReviewCycle
	for _, c := range m.cycles {
		if c.DocumentID == documentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memCycleRepo) UpdateOutcome(ctx context.Context, id int64, outcome entity.Outcome) error {
	for _, c := range m.cycles {
		if c.ID == id {
			c.Outcome = outcome
		}
	}
	return nil
}

type memAssignmentRepo struct {
	assignments []*entity.ReviewerAssignment
	nextID      int64
}

func newMemAssignmentRepo() *memAssignmentRepo { return &memAssignmentRepo{nextID: 1} }

func (m *memAssignmentRepo) Create(ctx context.Context, a *entity.ReviewerAssignment) error {
	a.ID = m.nextID
	m.nextID++
	cp := *a
	m.assignments = append(m.assignments, &cp)
	return nil
}

func (m *memAssignmentRepo) GetByCycleAndReviewer(ctx context.Context, cycleID int64, reviewerID string) (*entity.ReviewerAssignment, error) {
	for _, a := range m.assignments {
		if a.CycleID == cycleID && a.ReviewerID == reviewerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAssignmentRepo) ListByCycleID(ctx context.Context, cycleID int64) ([]*entity.ReviewerAssignment, error) {
	var out []*entity.ReviewerAssignment
	for _, a := range m.assignments {
		if a.CycleID == cycleID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memDecisionRepo struct {
	decisions []*entity.Decision
	nextID    int64
}

func newMemDecisionRepo() *memDecisionRepo { return &memDecisionRepo{nextID: 1} }

func (m *memDecisionRepo) Create(ctx context.Context, d *entity.Decision) error {
	d.ID = m.nextID
	m.nextID++
	cp := *d
	m.decisions = append(m.decisions, &cp)
	return nil
}

func (m *memDecisionRepo) GetByCycleAndReviewer(ctx context.Context, cycleID int64, reviewerID string) (*entity.Decision, error) {
	for _, d := range m.decisions {
		if d.CycleID == cycleID && d.ReviewerID == reviewerID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memDecisionRepo) ListByCycleID(ctx context.Context, cycleID int64) ([]*entity.Decision, error) {
	var out []*entity.Decision
	for _, d := range m.decisions {
		if d.CycleID == cycleID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memDelegationRepo struct {
	delegations []*entity.Delegation
	nextID      int64
}

func newMemDelegationRepo() *memDelegationRepo { return &memDelegationRepo{nextID: 1} }

func (m *memDelegationRepo) Create(ctx context.Context, d *entity.Delegation) error {
	d.ID = m.nextID
	m.nextID++
	cp := *d
	m.delegations = append(m.delegations, &cp)
	return nil
}

func (m *memDelegationRepo) GetLatestByDelegator(ctx context.Context, documentID int64, delegatorID string) (*entity.Delegation, error) {
	var latest *entity.Delegation
	for _, d := range m.delegations {
		if d.DocumentID == documentID && d.DelegatorID == delegatorID {
			latest = d
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memDelegationRepo) ListByDocumentID(ctx context.Context, documentID int64) ([]*entity.Delegation, error) {
	var out []*entity.Delegation
	for _, d := range m.delegations {
		if d.DocumentID == documentID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDelegationRepo) MarkRevoked(ctx context.Context, id int64, revokedAt time.Time) error {
	for _, d := range m.delegations {
		if d.ID == id {
			d.Revoked = true
			d.RevokedAt = &revokedAt
		}
	}
	return nil
}

type memEscalationRepo struct {
	records []*entity.EscalationRecord
	nextID  int64
}

func newMemEscalationRepo() *memEscalationRepo { return &memEscalationRepo{nextID: 1} }

func (m *memEscalationRepo) Create(ctx context.Context, r *entity.EscalationRecord) error {
	r.ID = m.nextID
	m.nextID++
	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

func (m *memEscalationRepo) ListByCycleID(ctx context.Context, cycleID int64) ([]*entity.EscalationRecord, error) {
	var out []*entity.EscalationRecord
	for _, r := range m.records {
		if r.CycleID == cycleID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memNotificationRepo struct {
	notifications []*entity.Notification
	nextID        int64
}

func newMemNotificationRepo() *memNotificationRepo { return &memNotificationRepo{nextID: 1} }

func (m *memNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	n.ID = m.nextID
	m.nextID++
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

func (m *memNotificationRepo) ListByRecipient(ctx context.Context, recipientID string, documentID int64) ([]*entity.Notification, error) {
	var out []*entity.Notification
	for _, n := range m.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if documentID != 0 && n.DocumentID != documentID {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

type memTxManager struct{}

func (m *memTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// engineFixture wires every service over the shared in-memory repositories,
// mirroring the production wiring in cmd/server
type engineFixture struct {
	documents     *memDocumentRepo
	cycles        *memCycleRepo
	assignments   *memAssignmentRepo
	decisions     *memDecisionRepo
	delegations   *memDelegationRepo
	escalations   *memEscalationRepo
	notifications *memNotificationRepo

	approval    ApprovalService
	delegation  DelegationService
	escalation  EscalationService
	ledger      LedgerService
	notifier    NotificationService
	settings    WorkflowSettings
}

func newEngineFixture(settings WorkflowSettings) *engineFixture {
	f := &engineFixture{
		documents:     newMemDocumentRepo(),
		cycles:        newMemCycleRepo(),
		assignments:   newMemAssignmentRepo(),
		decisions:     newMemDecisionRepo(),
		delegations:   newMemDelegationRepo(),
		escalations:   newMemEscalationRepo(),
		notifications: newMemNotificationRepo(),
		settings:      settings,
	}
	logger := noopLogger{}
	tx := &memTxManager{}

	d := dispatcher.NewDispatcher()
	f.notifier = NewNotificationService(f.notifications, logger)
	f.notifier.RegisterHandlers(d)

	f.ledger = NewLedgerService(f.assignments, f.decisions, logger)
	f.delegation = NewDelegationService(f.documents, f.assignments, f.decisions, f.delegations, tx, d, logger)
	f.escalation = NewEscalationService(f.documents, f.assignments, f.decisions, f.escalations, d,
		settings.DefaultEscalationTimeout, settings.EscalationApprovers, logger)
	f.approval = NewApprovalService(f.documents, f.cycles, f.assignments, f.decisions, f.escalations,
		f.ledger, f.delegation, f.escalation, tx, d, settings, logger)
	return f
}

// noTimeout returns an explicit zero timeout, meaning escalate immediately
func noTimeout() *time.Duration {
	d := time.Duration(0)
	return &d
}

func timeNowPlus(d time.Duration) time.Time {
	return time.Now().UTC().Add(d)
}

func defaultSettings() WorkflowSettings {
	return WorkflowSettings{
		DefaultEscalationTimeout: 24 * time.Hour,
		MaxEscalationDepth:       3,
		EscalationApprovers:      []string{"lead-1", "lead-2", "lead-3"},
	}
}

// submitDocument creates and submits a document in one step
func (f *engineFixture) submitDocument(t interface{ Fatalf(string, ...interface{}) }, authorID string, reviewerIDs []string) *entity.Document {
	ctx := context.Background()
	doc, err := f.approval.Create(ctx, authorID, "Q3 budget", "numbers", CreateOptions{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	doc, err = f.approval.Submit(ctx, doc.ID, authorID, reviewerIDs)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return doc
}
