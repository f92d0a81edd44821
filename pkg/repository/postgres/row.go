package postgres

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

const (
	vulnerabilityColumns = `id, name, source, project_number, risk_level, status, approval_id, description, discovered_at, created_at, updated_at`
	approvalColumns      = `id, title, priority, department, due_date, comments, created_by, approver, partition, member_ids, status, conclusion, audit_seq, created_at, updated_at`
	auditEntryColumns    = `id, approval_id, seq, step, operator, result, time, comments`
)

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func scanVulnerability(row scanner) (*model.Vulnerability, error) {
	var (
		v            model.Vulnerability
		riskLevel    string
		status       string
		approvalID   sql.NullString
		discoveredAt sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.Name, &v.Source, &v.ProjectNumber, &riskLevel, &status,
		&approvalID, &v.Description, &discoveredAt, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}

	v.RiskLevel = types.RiskLevel(riskLevel)
	v.Status = types.VulnerabilityStatus(status)
	v.ApprovalID = model.ApprovalID(approvalID.String)
	if discoveredAt.Valid {
		v.DiscoveredAt = discoveredAt.Time
	}
	return &v, nil
}

func vulnerabilityArgs(v *model.Vulnerability) []any {
	return []any{
		string(v.ID), v.Name, v.Source, v.ProjectNumber, string(v.RiskLevel), string(v.Status),
		nullString(string(v.ApprovalID)), v.Description, nullTime(v.DiscoveredAt), v.CreatedAt, v.UpdatedAt,
	}
}

func scanApproval(row scanner) (*model.Approval, error) {
	var (
		a          model.Approval
		priority   string
		dueDate    sql.NullTime
		memberIDs  pq.StringArray
		status     string
		conclusion sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Title, &priority, &a.Department, &dueDate, &a.Comments,
		&a.CreatedBy, &a.Approver, &a.Partition, &memberIDs, &status, &conclusion,
		&a.AuditSeq, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	a.Priority = types.Priority(priority)
	if dueDate.Valid {
		a.DueDate = dueDate.Time
	}
	a.MemberIDs = make([]model.VulnerabilityID, len(memberIDs))
	for i, id := range memberIDs {
		a.MemberIDs[i] = model.VulnerabilityID(id)
	}
	a.Status = types.ApprovalStatus(status)
	a.Conclusion = types.Decision(conclusion.String)
	return &a, nil
}

func approvalArgs(a *model.Approval) []any {
	memberIDs := make([]string, len(a.MemberIDs))
	for i, id := range a.MemberIDs {
		memberIDs[i] = string(id)
	}
	return []any{
		string(a.ID), a.Title, string(a.Priority), a.Department, nullTime(a.DueDate), a.Comments,
		a.CreatedBy, a.Approver, a.Partition, pq.Array(memberIDs), string(a.Status),
		nullString(string(a.Conclusion)), a.AuditSeq, a.CreatedAt, a.UpdatedAt,
	}
}

func scanAuditEntry(row scanner) (*model.AuditEntry, error) {
	var (
		e    model.AuditEntry
		step string
	)
	if err := row.Scan(&e.ID, &e.ApprovalID, &e.Seq, &step, &e.Operator, &e.Result, &e.Time, &e.Comments); err != nil {
		return nil, err
	}
	e.Step = types.AuditStep(step)
	return &e, nil
}

func vulnerabilityIDStrings(ids []model.VulnerabilityID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
