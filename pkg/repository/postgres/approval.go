package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
)

const (
	getApprovalQuery = `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1`

	countApprovalsQuery        = `SELECT COUNT(*) FROM approvals WHERE ($1 = '' OR status = $1)`
	listApprovalsQuery         = `SELECT ` + approvalColumns + ` FROM approvals WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	listAuditEntriesByApproval = `SELECT ` + auditEntryColumns + ` FROM approval_audit_entries WHERE approval_id = $1 ORDER BY time, seq`
)

type approvalRepository struct {
	db *sql.DB
}

func (r *approvalRepository) Get(ctx context.Context, id model.ApprovalID) (*model.Approval, error) {
	a, err := scanApproval(r.db.QueryRowContext(ctx, getApprovalQuery, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "approval not found",
				goerr.V(model.ApprovalIDKey, id))
		}
		return nil, goerr.Wrap(classify(err), "failed to get approval", goerr.V(model.ApprovalIDKey, id))
	}
	return a, nil
}

func (r *approvalRepository) List(ctx context.Context, opts ...interfaces.ListApprovalOption) ([]*model.Approval, int, error) {
	cfg := interfaces.BuildListApprovalConfig(opts...)
	status := ""
	if st := cfg.Status(); st != nil {
		status = string(*st)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countApprovalsQuery, status).Scan(&total); err != nil {
		return nil, 0, goerr.Wrap(classify(err), "failed to count approvals")
	}

	page := cfg.Page()
	rows, err := r.db.QueryContext(ctx, listApprovalsQuery, status, page.Size, page.Offset())
	if err != nil {
		return nil, 0, goerr.Wrap(classify(err), "failed to list approvals")
	}
	defer rows.Close()

	var approvals []*model.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, 0, goerr.Wrap(err, "failed to scan approval")
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, goerr.Wrap(classify(err), "failed to iterate approvals")
	}
	return approvals, total, nil
}

type auditEntryRepository struct {
	db *sql.DB
}

func (r *auditEntryRepository) ListByApproval(ctx context.Context, approvalID model.ApprovalID) ([]*model.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, listAuditEntriesByApproval, string(approvalID))
	if err != nil {
		return nil, goerr.Wrap(classify(err), "failed to list audit entries", goerr.V(model.ApprovalIDKey, approvalID))
	}
	defer rows.Close()

	entries := make([]*model.AuditEntry, 0)
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(classify(err), "failed to iterate audit entries")
	}
	return entries, nil
}
