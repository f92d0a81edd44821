package types

import (
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

// ApprovalStatus represents the lifecycle state of an approval
type ApprovalStatus string

const (
	ApprovalStatusCreated    ApprovalStatus = "created"
	ApprovalStatusProcessing ApprovalStatus = "processing"
	ApprovalStatusApproving  ApprovalStatus = "approving"
	ApprovalStatusClosed     ApprovalStatus = "closed"
)

// ApprovalEvent is something that happened to an approval and may move it to
// another status.
type ApprovalEvent int

const (
	// EventMembersChanged fires when assign or remove leaves the member set non-empty
	EventMembersChanged ApprovalEvent = iota + 1
	// EventMembersEmptied fires when remove leaves the member set empty
	EventMembersEmptied
	EventStartDisposal
	EventSendForReview
	EventDecisionApproved
	// EventDecisionReturned covers both rejected and returned decisions
	EventDecisionReturned
)

var (
	ErrApprovalClosed    = goerr.New("approval is closed")
	ErrInvalidTransition = goerr.New("invalid approval status transition")
)

// approvalTransitions is the only place status changes are defined. Events
// missing for a status are invalid in that status.
var approvalTransitions = map[ApprovalStatus]map[ApprovalEvent]ApprovalStatus{
	ApprovalStatusCreated: {
		EventMembersChanged:   ApprovalStatusProcessing,
		EventMembersEmptied:   ApprovalStatusClosed,
		EventStartDisposal:    ApprovalStatusProcessing,
		EventDecisionApproved: ApprovalStatusClosed,
		EventDecisionReturned: ApprovalStatusProcessing,
	},
	ApprovalStatusProcessing: {
		EventMembersChanged:   ApprovalStatusProcessing,
		EventMembersEmptied:   ApprovalStatusClosed,
		EventSendForReview:    ApprovalStatusApproving,
		EventDecisionApproved: ApprovalStatusClosed,
		EventDecisionReturned: ApprovalStatusProcessing,
	},
	ApprovalStatusApproving: {
		EventMembersChanged:   ApprovalStatusApproving,
		EventMembersEmptied:   ApprovalStatusClosed,
		EventDecisionApproved: ApprovalStatusClosed,
		EventDecisionReturned: ApprovalStatusProcessing,
	},
}

// AllApprovalStatuses returns all valid approval statuses in lifecycle order
func AllApprovalStatuses() []ApprovalStatus {
	return []ApprovalStatus{
		ApprovalStatusCreated,
		ApprovalStatusProcessing,
		ApprovalStatusApproving,
		ApprovalStatusClosed,
	}
}

// IsValid checks if the approval status is valid
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusCreated,
		ApprovalStatusProcessing,
		ApprovalStatusApproving,
		ApprovalStatusClosed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition can leave s.
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusClosed
}

// Next returns the status reached from s when ev happens.
func (s ApprovalStatus) Next(ev ApprovalEvent) (ApprovalStatus, error) {
	if s.IsTerminal() {
		return s, goerr.Wrap(ErrApprovalClosed, "no transition leaves a closed approval",
			goerr.V("status", s), goerr.V("event", ev))
	}

	next, ok := approvalTransitions[s][ev]
	if !ok {
		return s, goerr.Wrap(ErrInvalidTransition, "event not allowed in current status",
			goerr.V("status", s), goerr.V("event", ev))
	}
	return next, nil
}

// Code returns the numeric display convention of the status (0 = created ... 3 = closed).
func (s ApprovalStatus) Code() int {
	for i, st := range AllApprovalStatuses() {
		if st == s {
			return i
		}
	}
	return -1
}

// String returns the string representation of the approval status
func (s ApprovalStatus) String() string {
	return string(s)
}

// ParseApprovalStatus parses a string into an ApprovalStatus
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	status := ApprovalStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid approval status: %s", s)
	}
	return status, nil
}

// ApprovalStatusFromCode is the inverse of Code.
func ApprovalStatusFromCode(code int) (ApprovalStatus, error) {
	all := AllApprovalStatuses()
	if code < 0 || code >= len(all) {
		return "", fmt.Errorf("invalid approval status code: %d", code)
	}
	return all[code], nil
}

// String returns a readable event name for logs and errors
func (e ApprovalEvent) String() string {
	switch e {
	case EventMembersChanged:
		return "members_changed"
	case EventMembersEmptied:
		return "members_emptied"
	case EventStartDisposal:
		return "start_disposal"
	case EventSendForReview:
		return "send_for_review"
	case EventDecisionApproved:
		return "decision_approved"
	case EventDecisionReturned:
		return "decision_returned"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}
