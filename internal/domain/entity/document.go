package entity

import (
	"time"

	"github.com/docflow-io/docflow/internal/domain/workflow"
)

// Document is the aggregate root of the approval workflow. Its status is
// owned by the approval service and only changes through lifecycle
// transitions; CurrentCycleID always references the latest review cycle
// rather than relying on most-recent-by-timestamp queries.
type Document struct {
	ID       int64
	Title    string
	Content  string
	AuthorID string
	Status   workflow.State

	// CurrentCycleID is nil while the document has never been submitted
	CurrentCycleID *int64

	// EscalationTimeout is the per-reviewer decision window before an
	// escalation fires. Nil falls back to the system default; an explicit
	// zero means escalate immediately and is honored as configured.
	EscalationTimeout *time.Duration

	// EscalationDepth counts escalations fired across the document's life,
	// starting at 0 for the original assignment
	EscalationDepth int

	// MaxEscalationDepth caps EscalationDepth; defaulted from configuration
	MaxEscalationDepth int

	// EscalationApprovers is the ordered chain of next-level approvers,
	// indexed by the depth being entered (approver for depth n sits at n-1)
	EscalationApprovers []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveEscalationTimeout resolves the document's timeout against the
// system default without conflating an explicit zero with unset
func (d *Document) EffectiveEscalationTimeout(systemDefault time.Duration) time.Duration {
	if d.EscalationTimeout == nil {
		return systemDefault
	}
	return *d.EscalationTimeout
}
