package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
)

const (
	lockApprovalQuery = `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1 FOR UPDATE`

	lockVulnerabilitiesQuery = `SELECT ` + vulnerabilityColumns + ` FROM vulnerabilities WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	upsertApprovalQuery = `INSERT INTO approvals (` + approvalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			priority = EXCLUDED.priority,
			department = EXCLUDED.department,
			due_date = EXCLUDED.due_date,
			comments = EXCLUDED.comments,
			approver = EXCLUDED.approver,
			partition = EXCLUDED.partition,
			member_ids = EXCLUDED.member_ids,
			status = EXCLUDED.status,
			conclusion = EXCLUDED.conclusion,
			audit_seq = EXCLUDED.audit_seq,
			updated_at = EXCLUDED.updated_at`

	updateVulnerabilityQuery = `UPDATE vulnerabilities SET
			name = $2, source = $3, project_number = $4, risk_level = $5, status = $6,
			approval_id = $7, description = $8, discovered_at = $9, created_at = $10, updated_at = $11
		WHERE id = $1`

	insertAuditEntryQuery = `INSERT INTO approval_audit_entries (` + auditEntryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

type transaction struct {
	tx *sql.Tx
}

var _ interfaces.Transaction = &transaction{}

func (t *transaction) LockApproval(ctx context.Context, id model.ApprovalID) (*model.Approval, error) {
	a, err := scanApproval(t.tx.QueryRowContext(ctx, lockApprovalQuery, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "approval not found",
				goerr.V(model.ApprovalIDKey, id))
		}
		return nil, goerr.Wrap(classify(err), "failed to lock approval", goerr.V(model.ApprovalIDKey, id))
	}
	return a, nil
}

func (t *transaction) LockVulnerabilities(ctx context.Context, ids []model.VulnerabilityID) ([]*model.Vulnerability, error) {
	rows, err := t.tx.QueryContext(ctx, lockVulnerabilitiesQuery, pq.Array(vulnerabilityIDStrings(ids)))
	if err != nil {
		return nil, goerr.Wrap(classify(err), "failed to lock vulnerabilities")
	}
	defer rows.Close()

	found := make(map[model.VulnerabilityID]*model.Vulnerability, len(ids))
	for rows.Next() {
		v, err := scanVulnerability(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan vulnerability")
		}
		found[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(classify(err), "failed to iterate vulnerabilities")
	}

	result := make([]*model.Vulnerability, 0, len(ids))
	var missing []model.VulnerabilityID
	for _, id := range ids {
		v, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		result = append(result, v.Clone())
	}
	if len(missing) > 0 {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "vulnerability not found",
			goerr.V(model.VulnerabilityIDsKey, missing))
	}
	return result, nil
}

func (t *transaction) PutApproval(ctx context.Context, a *model.Approval) error {
	if _, err := t.tx.ExecContext(ctx, upsertApprovalQuery, approvalArgs(a)...); err != nil {
		return goerr.Wrap(classify(err), "failed to put approval", goerr.V(model.ApprovalIDKey, a.ID))
	}
	return nil
}

func (t *transaction) PutVulnerability(ctx context.Context, v *model.Vulnerability) error {
	res, err := t.tx.ExecContext(ctx, updateVulnerabilityQuery, vulnerabilityArgs(v)...)
	if err != nil {
		return goerr.Wrap(classify(err), "failed to put vulnerability", goerr.V(model.VulnerabilityIDKey, v.ID))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goerr.Wrap(interfaces.ErrNotFound, "vulnerability not found", goerr.V(model.VulnerabilityIDKey, v.ID))
	}
	return nil
}

func (t *transaction) AppendAuditEntry(ctx context.Context, e *model.AuditEntry) error {
	_, err := t.tx.ExecContext(ctx, insertAuditEntryQuery,
		string(e.ID), string(e.ApprovalID), e.Seq, string(e.Step), e.Operator, e.Result, e.Time, e.Comments)
	if err != nil {
		return goerr.Wrap(classify(err), "failed to append audit entry", goerr.V(model.ApprovalIDKey, e.ApprovalID))
	}
	return nil
}
