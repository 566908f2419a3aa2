package domain

// DecisionKind is the user's verdict on a previewed draft.
type DecisionKind string

const (
	DecisionApprove DecisionKind = "approve"
	DecisionModify  DecisionKind = "modify"
	DecisionCancel  DecisionKind = "cancel"
)

// ApprovalDecision is created per user action and consumed exactly once.
type ApprovalDecision struct {
	Kind DecisionKind
	// Instructions carries the modification text for DecisionModify, and the
	// optional confirmation text for DecisionApprove.
	Instructions string
}
