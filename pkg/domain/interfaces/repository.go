package interfaces

import (
	"context"

	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
)

// Repository defines the interface for data persistence
type Repository interface {
	Vulnerability() VulnerabilityRepository
	Approval() ApprovalRepository
	AuditEntry() AuditEntryRepository

	// RunTransaction runs fn in one atomic transaction. Either every write made
	// through tx becomes visible or none does. fn may be re-run by callers on
	// ErrTransactionFailed, so it must not have side effects outside tx.
	RunTransaction(ctx context.Context, fn TxFunc) error

	Close() error
}

// VulnerabilityRepository defines committed-state access to vulnerabilities
type VulnerabilityRepository interface {
	// Create registers a new vulnerability. Returns ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, v *model.Vulnerability) (*model.Vulnerability, error)

	// Get retrieves a vulnerability by ID. Returns ErrNotFound if missing.
	Get(ctx context.Context, id model.VulnerabilityID) (*model.Vulnerability, error)

	// List returns one page of vulnerabilities and the total number of matches
	List(ctx context.Context, opts ...ListVulnerabilityOption) ([]*model.Vulnerability, int, error)

	// ListByApproval returns the vulnerabilities pointing at approvalID,
	// ordered by risk level desc then discovery time desc.
	ListByApproval(ctx context.Context, approvalID model.ApprovalID) ([]*model.Vulnerability, error)
}

// ApprovalRepository defines committed-state access to approvals
type ApprovalRepository interface {
	// Get retrieves an approval by ID. Returns ErrNotFound if missing.
	Get(ctx context.Context, id model.ApprovalID) (*model.Approval, error)

	// List returns one page of approvals, newest first, and the total number of matches
	List(ctx context.Context, opts ...ListApprovalOption) ([]*model.Approval, int, error)
}

// AuditEntryRepository reads the audit trail. Entries are written only through Transaction.
type AuditEntryRepository interface {
	// ListByApproval returns the audit trail ordered by time, then sequence
	ListByApproval(ctx context.Context, approvalID model.ApprovalID) ([]*model.AuditEntry, error)
}
