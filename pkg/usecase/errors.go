package usecase

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrApprovalNotFound      = errors.New("approval not found")
	ErrVulnerabilityNotFound = errors.New("vulnerability not found")

	// Membership errors
	ErrAlreadyAssigned = errors.New("vulnerability is already assigned to an approval")
	ErrMixedSource     = errors.New("vulnerabilities do not share one partition")
	ErrNotAMember      = errors.New("vulnerability is not a member of the approval")

	// Registration errors
	ErrVulnerabilityExists = errors.New("vulnerability already exists")

	// Status errors
	ErrAlreadyClosed     = errors.New("approval is already closed")
	ErrInvalidTransition = types.ErrInvalidTransition

	// Other errors
	ErrInvalidArgument = errors.New("invalid argument")
)

// Context keys for error values
const (
	ApprovalIDKey       = "approval_id"
	VulnerabilityIDKey  = "vulnerability_id"
	VulnerabilityIDsKey = "vulnerability_ids"
	PartitionKey        = "partition"
)

// translateNotFound rewrites a store ErrNotFound into kind, keeping the values
// the store attached. Other errors pass through.
func translateNotFound(err error, kind error, msg string) error {
	if !errors.Is(err, interfaces.ErrNotFound) {
		return err
	}

	var opts []goerr.Option
	if ge := goerr.Unwrap(err); ge != nil {
		for k, v := range ge.Values() {
			opts = append(opts, goerr.V(k, v))
		}
	}
	return goerr.Wrap(kind, msg, opts...)
}

// translateStatusError maps state machine errors onto use case kinds
func translateStatusError(err error) error {
	if errors.Is(err, types.ErrApprovalClosed) {
		var opts []goerr.Option
		if ge := goerr.Unwrap(err); ge != nil {
			for k, v := range ge.Values() {
				opts = append(opts, goerr.V(k, v))
			}
		}
		return goerr.Wrap(ErrAlreadyClosed, "approval is closed", opts...)
	}
	return err
}
