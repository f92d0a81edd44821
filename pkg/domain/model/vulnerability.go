package model

import (
	"cmp"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

// VulnerabilityID identifies a vulnerability (problem) record
type VulnerabilityID string

func (id VulnerabilityID) String() string {
	return string(id)
}

// Vulnerability is a finding that can be attached to at most one approval.
// ApprovalID is empty when the vulnerability is not a member of any approval.
type Vulnerability struct {
	ID            VulnerabilityID
	Name          string
	Source        string // IAST, DAST, SCA ...
	ProjectNumber string
	RiskLevel     types.RiskLevel
	Status        types.VulnerabilityStatus
	ApprovalID    ApprovalID
	Description   string
	DiscoveredAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Assigned reports whether the vulnerability is currently a member of an approval
func (v *Vulnerability) Assigned() bool {
	return v.ApprovalID != ""
}

// PartitionValue returns the attribute selected by key
func (v *Vulnerability) PartitionValue(key types.PartitionKey) string {
	switch key {
	case types.PartitionKeyProjectNumber:
		return v.ProjectNumber
	default:
		return v.Source
	}
}

// Validate checks fields required when registering a vulnerability
func (v *Vulnerability) Validate() error {
	if v.ID == "" {
		return goerr.Wrap(ErrInvalidRecord, "vulnerability ID is required")
	}
	if v.Name == "" {
		return goerr.Wrap(ErrInvalidRecord, "vulnerability name is required",
			goerr.V(VulnerabilityIDKey, v.ID))
	}
	if v.Source == "" {
		return goerr.Wrap(ErrInvalidRecord, "vulnerability source is required",
			goerr.V(VulnerabilityIDKey, v.ID))
	}
	if !v.RiskLevel.IsValid() {
		return goerr.Wrap(ErrInvalidRecord, "invalid risk level",
			goerr.V(VulnerabilityIDKey, v.ID),
			goerr.V("risk_level", v.RiskLevel))
	}
	if v.Status != "" && !v.Status.IsValid() {
		return goerr.Wrap(ErrInvalidRecord, "invalid vulnerability status",
			goerr.V(VulnerabilityIDKey, v.ID),
			goerr.V("status", v.Status))
	}
	return nil
}

// Clone returns a copy that can be modified without affecting v
func (v *Vulnerability) Clone() *Vulnerability {
	c := *v
	return &c
}

// SortVulnerabilities orders by risk level desc, then discovery time desc, then ID
func SortVulnerabilities(vs []*Vulnerability) {
	slices.SortStableFunc(vs, func(a, b *Vulnerability) int {
		if c := cmp.Compare(b.RiskLevel.Severity(), a.RiskLevel.Severity()); c != 0 {
			return c
		}
		if c := b.DiscoveredAt.Compare(a.DiscoveredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
