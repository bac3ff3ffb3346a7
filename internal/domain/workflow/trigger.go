package workflow

// Trigger represents an action that can cause a status transition
type Trigger string

const (
	TriggerSubmit   Trigger = "submit"
	TriggerApprove  Trigger = "approve"
	TriggerReject   Trigger = "reject"
	TriggerResubmit Trigger = "resubmit"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
