package types

import "fmt"

// Decision is the conclusion submitted for an approval
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionReturned Decision = "returned"
)

// AllDecisions returns all valid decisions
func AllDecisions() []Decision {
	return []Decision{
		DecisionApproved,
		DecisionRejected,
		DecisionReturned,
	}
}

// IsValid checks if the decision is valid
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionReturned:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the decision closes the approval. Rejected and
// returned decisions send it back to processing.
func (d Decision) IsTerminal() bool {
	return d == DecisionApproved
}

// Event maps the decision onto the approval state machine
func (d Decision) Event() ApprovalEvent {
	if d.IsTerminal() {
		return EventDecisionApproved
	}
	return EventDecisionReturned
}

// MemberStatus is the display status members take after the decision
func (d Decision) MemberStatus() VulnerabilityStatus {
	switch d {
	case DecisionApproved:
		return VulnerabilityStatusApproved
	case DecisionRejected:
		return VulnerabilityStatusRejected
	default:
		return VulnerabilityStatusProcessing
	}
}

// String returns the string representation of the decision
func (d Decision) String() string {
	return string(d)
}

// ParseDecision parses a string into a Decision
func ParseDecision(s string) (Decision, error) {
	d := Decision(s)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid decision: %s", s)
	}
	return d, nil
}
