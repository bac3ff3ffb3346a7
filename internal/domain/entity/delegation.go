package entity

import "time"

// Delegation grants time-bound substitute authority for one reviewer on one
// document. The relation is a flat single hop: substitutes can never
// delegate further, so no chain traversal is ever needed. At most one
// non-revoked, non-expired delegation exists per (document, delegator).
type Delegation struct {
	ID           int64
	DocumentID   int64
	DelegatorID  string
	SubstituteID string
	ExpiresAt    time.Time
	Revoked      bool
	RevokedAt    *time.Time
	CreatedAt    time.Time
}

// ActiveAt reports whether the delegation authorizes the substitute at the
// given instant. Expiry is checked lazily here; nothing sweeps expired rows.
func (d *Delegation) ActiveAt(now time.Time) bool {
	return !d.Revoked && d.ExpiresAt.After(now)
}
