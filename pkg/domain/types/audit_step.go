package types

// AuditStep labels the transition recorded by an audit entry
type AuditStep string

const (
	AuditStepSubmit        AuditStep = "submit"
	AuditStepAssign        AuditStep = "assign"
	AuditStepRemoveMember  AuditStep = "remove-member"
	AuditStepStartDisposal AuditStep = "start-disposal"
	AuditStepSendForReview AuditStep = "send-for-review"
	AuditStepFinalDecision AuditStep = "final-decision"
)

// String returns the string representation of the audit step
func (s AuditStep) String() string {
	return string(s)
}
