package types

import "fmt"

// VulnerabilityStatus is the display status of a vulnerability. It is derived
// from the association and written only by the approval engine.
type VulnerabilityStatus string

const (
	VulnerabilityStatusUnassigned VulnerabilityStatus = "unassigned"
	VulnerabilityStatusPending    VulnerabilityStatus = "pending"
	VulnerabilityStatusProcessing VulnerabilityStatus = "processing"
	VulnerabilityStatusApproved   VulnerabilityStatus = "approved"
	VulnerabilityStatusRejected   VulnerabilityStatus = "rejected"
)

// AllVulnerabilityStatuses returns all valid vulnerability statuses
func AllVulnerabilityStatuses() []VulnerabilityStatus {
	return []VulnerabilityStatus{
		VulnerabilityStatusUnassigned,
		VulnerabilityStatusPending,
		VulnerabilityStatusProcessing,
		VulnerabilityStatusApproved,
		VulnerabilityStatusRejected,
	}
}

// IsValid checks if the vulnerability status is valid
func (s VulnerabilityStatus) IsValid() bool {
	switch s {
	case VulnerabilityStatusUnassigned,
		VulnerabilityStatusPending,
		VulnerabilityStatusProcessing,
		VulnerabilityStatusApproved,
		VulnerabilityStatusRejected:
		return true
	default:
		return false
	}
}

// String returns the string representation of the vulnerability status
func (s VulnerabilityStatus) String() string {
	return string(s)
}

// ParseVulnerabilityStatus parses a string into a VulnerabilityStatus
func ParseVulnerabilityStatus(s string) (VulnerabilityStatus, error) {
	status := VulnerabilityStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid vulnerability status: %s", s)
	}
	return status, nil
}
