package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

const (
	insertVulnerabilityQuery = `INSERT INTO vulnerabilities (` + vulnerabilityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getVulnerabilityQuery = `SELECT ` + vulnerabilityColumns + ` FROM vulnerabilities WHERE id = $1`

	vulnerabilityOrder = ` ORDER BY CASE risk_level WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END DESC, discovered_at DESC NULLS LAST, id`

	listVulnerabilitiesByApprovalQuery = `SELECT ` + vulnerabilityColumns + ` FROM vulnerabilities WHERE approval_id = $1` + vulnerabilityOrder
)

type vulnerabilityRepository struct {
	db *sql.DB
}

func (r *vulnerabilityRepository) Create(ctx context.Context, v *model.Vulnerability) (*model.Vulnerability, error) {
	now := time.Now().UTC()
	created := v.Clone()
	if created.Status == "" {
		created.Status = types.VulnerabilityStatusUnassigned
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	if _, err := r.db.ExecContext(ctx, insertVulnerabilityQuery, vulnerabilityArgs(created)...); err != nil {
		return nil, goerr.Wrap(classify(err), "failed to create vulnerability", goerr.V(model.VulnerabilityIDKey, created.ID))
	}
	return created, nil
}

func (r *vulnerabilityRepository) Get(ctx context.Context, id model.VulnerabilityID) (*model.Vulnerability, error) {
	v, err := scanVulnerability(r.db.QueryRowContext(ctx, getVulnerabilityQuery, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "vulnerability not found",
				goerr.V(model.VulnerabilityIDKey, id))
		}
		return nil, goerr.Wrap(classify(err), "failed to get vulnerability", goerr.V(model.VulnerabilityIDKey, id))
	}
	return v, nil
}

// buildVulnerabilityFilter renders the WHERE clause of a vulnerability list
func buildVulnerabilityFilter(opts ...interfaces.ListVulnerabilityOption) (string, []any, interfaces.Page) {
	cfg := interfaces.BuildListVulnerabilityConfig(opts...)

	var conds []string
	var args []any
	if s := cfg.Search(); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR source ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	if level := cfg.RiskLevel(); level != nil {
		args = append(args, string(*level))
		conds = append(conds, fmt.Sprintf("risk_level = $%d", len(args)))
	}
	if st := cfg.Status(); st != nil {
		args = append(args, string(*st))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if cfg.UnassignedOnly() {
		conds = append(conds, "approval_id IS NULL")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return where, args, cfg.Page()
}

func (r *vulnerabilityRepository) List(ctx context.Context, opts ...interfaces.ListVulnerabilityOption) ([]*model.Vulnerability, int, error) {
	where, args, page := buildVulnerabilityFilter(opts...)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vulnerabilities`+where, args...).Scan(&total); err != nil {
		return nil, 0, goerr.Wrap(classify(err), "failed to count vulnerabilities")
	}

	query := fmt.Sprintf(`SELECT %s FROM vulnerabilities%s%s LIMIT $%d OFFSET $%d`,
		vulnerabilityColumns, where, vulnerabilityOrder, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, goerr.Wrap(classify(err), "failed to list vulnerabilities")
	}
	defer rows.Close()

	vs, err := collectVulnerabilities(rows)
	if err != nil {
		return nil, 0, err
	}
	return vs, total, nil
}

func (r *vulnerabilityRepository) ListByApproval(ctx context.Context, approvalID model.ApprovalID) ([]*model.Vulnerability, error) {
	rows, err := r.db.QueryContext(ctx, listVulnerabilitiesByApprovalQuery, string(approvalID))
	if err != nil {
		return nil, goerr.Wrap(classify(err), "failed to list approval members", goerr.V(model.ApprovalIDKey, approvalID))
	}
	defer rows.Close()

	return collectVulnerabilities(rows)
}

func collectVulnerabilities(rows *sql.Rows) ([]*model.Vulnerability, error) {
	var vs []*model.Vulnerability
	for rows.Next() {
		v, err := scanVulnerability(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan vulnerability")
		}
		vs = append(vs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(classify(err), "failed to iterate vulnerabilities")
	}
	return vs, nil
}
