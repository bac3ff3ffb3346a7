package workflow

// BuildDocumentLifecycle creates a state machine configured with the document
// approval lifecycle. These four edges are the only legal transitions:
//
//	draft    --submit-->   review
//	review   --approve-->  approved
//	review   --reject-->   rejected
//	rejected --resubmit--> review
func BuildDocumentLifecycle(initialState State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateDraft).
		Permit(TriggerSubmit, StateReview)

	builder.Configure(StateReview).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	builder.Configure(StateRejected).
		Permit(TriggerResubmit, StateReview)

	// APPROVED is terminal - no outgoing transitions

	return builder.Build(initialState)
}
