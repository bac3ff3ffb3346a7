package event

// Type identifies the type of notification event
type Type string

const (
	TypeReviewerAssigned  Type = "reviewer.assigned"
	TypeDocumentApproved  Type = "document.approved"
	TypeDocumentRejected  Type = "document.rejected"
	TypeDocumentEscalated Type = "document.escalated"
	TypeDelegationGranted Type = "delegation.granted"
	TypeDelegationRevoked Type = "delegation.revoked"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeReviewerAssigned,
		TypeDocumentApproved,
		TypeDocumentRejected,
		TypeDocumentEscalated,
		TypeDelegationGranted,
		TypeDelegationRevoked:
		return true
	default:
		return false
	}
}
