package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors identifying each failure kind. Callers match with
// errors.Is; the transport layer maps kinds to protocol responses.
var (
	// ErrNotFound is returned when a document or related record does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDocumentLocked is returned when editing an approved document
	ErrDocumentLocked = errors.New("document is locked")

	// ErrUnderReview is returned when editing a document that is under review
	ErrUnderReview = errors.New("document is under review")

	// ErrMissingReviewers is returned when a submission carries no reviewers
	ErrMissingReviewers = errors.New("at least one reviewer is required")

	// ErrNotDocumentAuthor is returned when a non-author edits or submits
	ErrNotDocumentAuthor = errors.New("actor is not the document author")

	// ErrNotAReviewer is returned when a decision comes from an actor that is
	// neither an assigned reviewer nor an active substitute
	ErrNotAReviewer = errors.New("actor is not an assigned reviewer or active substitute")

	// ErrSelfApproval is returned when an author would decide on their own document
	ErrSelfApproval = errors.New("author cannot review their own document")

	// ErrDuplicateDecision is returned when a reviewer's decision was already recorded
	ErrDuplicateDecision = errors.New("decision already recorded")

	// ErrDecisionImmutable is returned when a recorded decision would be changed
	ErrDecisionImmutable = errors.New("recorded decisions cannot be changed")

	// ErrDecisionRequiresReason is returned when a rejection carries no reason
	ErrDecisionRequiresReason = errors.New("rejection requires a reason")

	// ErrNotAnAssignedReviewer is returned when a delegator holds no assignment
	ErrNotAnAssignedReviewer = errors.New("delegator is not an assigned reviewer")

	// ErrAlreadyDelegated is returned when an active delegation already exists
	ErrAlreadyDelegated = errors.New("an active delegation already exists")

	// ErrRedelegationNotAllowed is returned when an active substitute tries to delegate
	ErrRedelegationNotAllowed = errors.New("substitutes cannot delegate")

	// ErrDelegationExpired is returned when a decision arrives via a lapsed delegation
	ErrDelegationExpired = errors.New("delegation has expired")

	// ErrDelegationExpiryInPast is returned when a delegation expiry is not in the future
	ErrDelegationExpiryInPast = errors.New("delegation expiry must be in the future")

	// ErrAlreadyDecided is returned when delegating an obligation that is already settled
	ErrAlreadyDecided = errors.New("review decision already submitted")

	// ErrMaxEscalationDepth is returned by manual escalation at the depth cap.
	// Timeout-driven evaluation logs this condition instead of surfacing it.
	ErrMaxEscalationDepth = errors.New("maximum escalation depth reached")

	// ErrReviewerAlreadyAssigned is returned when escalating to a reviewer
	// that already holds an assignment on the current cycle
	ErrReviewerAlreadyAssigned = errors.New("reviewer is already assigned to this cycle")
)

// Error wraps a sentinel kind with the context a caller needs to render a
// precise message: the document, its status at the time, the attempted
// action, and the offending field if any.
type Error struct {
	Kind       error
	DocumentID int64
	Status     State
	Action     string
	Field      string
	Detail     string
}

// NewError creates a workflow error of the given kind
func NewError(kind error) *Error {
	return &Error{Kind: kind}
}

// WithDocument attaches the document id and its status at failure time
func (e *Error) WithDocument(id int64, status State) *Error {
	e.DocumentID = id
	e.Status = status
	return e
}

// WithStatus attaches the status at failure time when no document is in scope
func (e *Error) WithStatus(status State) *Error {
	e.Status = status
	return e
}

// WithAction attaches the attempted action
func (e *Error) WithAction(action string) *Error {
	e.Action = action
	return e
}

// WithField attaches the offending input field
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithDetail attaches a free-form detail message
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// Error returns the formatted error message including all attached context
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	if e.DocumentID != 0 {
		fmt.Fprintf(&b, " (document %d", e.DocumentID)
		if e.Status != "" {
			fmt.Fprintf(&b, ", status %s", e.Status)
		}
		b.WriteString(")")
	}
	if e.Action != "" {
		fmt.Fprintf(&b, ": action %q", e.Action)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap returns the sentinel kind so errors.Is matches on it
func (e *Error) Unwrap() error {
	return e.Kind
}
