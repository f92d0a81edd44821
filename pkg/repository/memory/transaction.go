package memory

import (
	"context"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
)

// transaction buffers writes until commit. Locks taken through it are held
// until RunTransaction returns.
type transaction struct {
	store *Memory
	held  []string

	approvals       map[model.ApprovalID]*model.Approval
	vulnerabilities map[model.VulnerabilityID]*model.Vulnerability
	auditEntries    []*model.AuditEntry
}

var _ interfaces.Transaction = &transaction{}

func (m *Memory) RunTransaction(ctx context.Context, fn interfaces.TxFunc) error {
	tx := &transaction{
		store:           m,
		approvals:       make(map[model.ApprovalID]*model.Approval),
		vulnerabilities: make(map[model.VulnerabilityID]*model.Vulnerability),
	}
	defer tx.releaseAll()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := m.inject(OpCommit, ""); err != nil {
		return goerr.Wrap(err, "failed to commit transaction")
	}

	return tx.commit()
}

func (tx *transaction) lock(ctx context.Context, key string) error {
	if slices.Contains(tx.held, key) {
		return nil
	}
	if err := tx.store.locks.acquire(ctx, key); err != nil {
		return goerr.Wrap(interfaces.ErrTransactionFailed, err.Error())
	}
	tx.held = append(tx.held, key)
	return nil
}

func (tx *transaction) releaseAll() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.store.locks.release(tx.held[i])
	}
	tx.held = nil
}

func (tx *transaction) LockApproval(ctx context.Context, id model.ApprovalID) (*model.Approval, error) {
	if err := tx.lock(ctx, approvalKey(string(id))); err != nil {
		return nil, err
	}

	if a, ok := tx.approvals[id]; ok {
		return a.Clone(), nil
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	a, ok := tx.store.approvals[id]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "approval not found",
			goerr.V(model.ApprovalIDKey, id))
	}
	return a.Clone(), nil
}

func (tx *transaction) LockVulnerabilities(ctx context.Context, ids []model.VulnerabilityID) ([]*model.Vulnerability, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, id := range sorted {
		if err := tx.lock(ctx, vulnerabilityKey(string(id))); err != nil {
			return nil, err
		}
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	result := make([]*model.Vulnerability, 0, len(ids))
	var missing []model.VulnerabilityID
	for _, id := range ids {
		if v, ok := tx.vulnerabilities[id]; ok {
			result = append(result, v.Clone())
			continue
		}
		v, ok := tx.store.vulnerabilities[id]
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

func (tx *transaction) PutApproval(ctx context.Context, a *model.Approval) error {
	if err := tx.store.inject(OpPutApproval, string(a.ID)); err != nil {
		return goerr.Wrap(err, "failed to put approval", goerr.V(model.ApprovalIDKey, a.ID))
	}
	tx.approvals[a.ID] = a.Clone()
	return nil
}

func (tx *transaction) PutVulnerability(ctx context.Context, v *model.Vulnerability) error {
	if err := tx.store.inject(OpPutVulnerability, string(v.ID)); err != nil {
		return goerr.Wrap(err, "failed to put vulnerability", goerr.V(model.VulnerabilityIDKey, v.ID))
	}
	tx.vulnerabilities[v.ID] = v.Clone()
	return nil
}

func (tx *transaction) AppendAuditEntry(ctx context.Context, e *model.AuditEntry) error {
	if err := tx.store.inject(OpAppendAuditEntry, string(e.ApprovalID)); err != nil {
		return goerr.Wrap(err, "failed to append audit entry", goerr.V(model.ApprovalIDKey, e.ApprovalID))
	}

	tx.store.mu.RLock()
	_, exists := tx.store.auditIDs[e.ID]
	tx.store.mu.RUnlock()
	if exists || slices.ContainsFunc(tx.auditEntries, func(x *model.AuditEntry) bool { return x.ID == e.ID }) {
		return goerr.Wrap(interfaces.ErrAlreadyExists, "audit entry already exists",
			goerr.V("audit_entry_id", e.ID))
	}

	copied := *e
	tx.auditEntries = append(tx.auditEntries, &copied)
	return nil
}

func (tx *transaction) commit() error {
	m := tx.store
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, a := range tx.approvals {
		m.approvals[id] = a
	}
	for id, v := range tx.vulnerabilities {
		m.vulnerabilities[id] = v
	}
	for _, e := range tx.auditEntries {
		m.auditEntries[e.ApprovalID] = append(m.auditEntries[e.ApprovalID], e)
		m.auditIDs[e.ID] = struct{}{}
	}
	return nil
}
