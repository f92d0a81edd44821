package interfaces

import (
	"context"

	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
)

// TxFunc is the body of a transaction
type TxFunc func(ctx context.Context, tx Transaction) error

// Transaction is the view of the record store inside RunTransaction.
// Lock methods return the current committed state and hold the rows until the
// transaction ends. Callers lock the approval before any vulnerability.
type Transaction interface {
	// LockApproval reads and locks one approval. Returns ErrNotFound if missing.
	LockApproval(ctx context.Context, id model.ApprovalID) (*model.Approval, error)

	// LockVulnerabilities reads and locks the given vulnerabilities in ID order.
	// The result follows the order of ids. Returns ErrNotFound carrying the
	// missing IDs if any of them does not exist.
	LockVulnerabilities(ctx context.Context, ids []model.VulnerabilityID) ([]*model.Vulnerability, error)

	// PutApproval creates or replaces an approval
	PutApproval(ctx context.Context, a *model.Approval) error

	// PutVulnerability replaces a vulnerability
	PutVulnerability(ctx context.Context, v *model.Vulnerability) error

	// AppendAuditEntry adds an immutable audit entry. Returns ErrAlreadyExists on a duplicate ID.
	AppendAuditEntry(ctx context.Context, e *model.AuditEntry) error
}
