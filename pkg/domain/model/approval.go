package model

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

// ApprovalID identifies an approval record
type ApprovalID string

// NewApprovalID returns a fresh approval ID
func NewApprovalID() ApprovalID {
	return ApprovalID("APP-" + uuid.NewString())
}

func (id ApprovalID) String() string {
	return string(id)
}

// Approval groups vulnerabilities that share one partition value and tracks
// their joint disposal.
type Approval struct {
	ID         ApprovalID
	Title      string
	Priority   types.Priority
	Department string
	DueDate    time.Time
	Comments   string
	CreatedBy  string
	Approver   string

	// Partition is the partition-key value every member shares
	Partition string
	MemberIDs []VulnerabilityID

	Status     types.ApprovalStatus
	Conclusion types.Decision // empty until a decision is submitted
	AuditSeq   int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMember reports whether id is in the member set
func (a *Approval) HasMember(id VulnerabilityID) bool {
	return slices.Contains(a.MemberIDs, id)
}

// AddMembers appends ids not already present, keeping insertion order
func (a *Approval) AddMembers(ids ...VulnerabilityID) {
	for _, id := range ids {
		if !a.HasMember(id) {
			a.MemberIDs = append(a.MemberIDs, id)
		}
	}
}

// RemoveMember drops id from the member set. It returns false if id was not a member.
func (a *Approval) RemoveMember(id VulnerabilityID) bool {
	idx := slices.Index(a.MemberIDs, id)
	if idx < 0 {
		return false
	}
	a.MemberIDs = slices.Delete(slices.Clone(a.MemberIDs), idx, idx+1)
	return true
}

// AppendComment adds a timestamped line to Comments
func (a *Approval) AppendComment(at time.Time, text string) {
	line := fmt.Sprintf("[%s] %s", at.Format(time.DateTime), text)
	if a.Comments == "" {
		a.Comments = line
		return
	}
	a.Comments += "\n" + line
}

// Clone returns a deep copy of the approval
func (a *Approval) Clone() *Approval {
	c := *a
	c.MemberIDs = slices.Clone(a.MemberIDs)
	return &c
}

// ApprovalDetail is the read model of one approval with its members and audit trail
type ApprovalDetail struct {
	Approval   *Approval
	Members    []*Vulnerability
	AuditTrail []*AuditEntry
}

// SortApprovals orders newest first, ties broken by ID
func SortApprovals(as []*Approval) {
	slices.SortStableFunc(as, func(a, b *Approval) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
