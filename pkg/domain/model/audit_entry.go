package model

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

// AuditEntryID identifies one audit trail row
type AuditEntryID string

// NewAuditEntryID returns a fresh audit entry ID
func NewAuditEntryID() AuditEntryID {
	return AuditEntryID(uuid.NewString())
}

// AuditEntry is an immutable record of one state-affecting operation on an approval.
// Entries of one approval are ordered by Time, then Seq.
type AuditEntry struct {
	ID         AuditEntryID
	ApprovalID ApprovalID
	Seq        int64
	Step       types.AuditStep
	Operator   string
	Result     string
	Time       time.Time
	Comments   string
}

// SortAuditEntries orders entries by Time, then Seq
func SortAuditEntries(entries []*AuditEntry) {
	slices.SortStableFunc(entries, func(a, b *AuditEntry) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}
