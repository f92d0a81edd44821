package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
)

type approvalRepository struct {
	store *Memory
}

func (r *approvalRepository) Get(ctx context.Context, id model.ApprovalID) (*model.Approval, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, exists := r.store.approvals[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "approval not found",
			goerr.V(model.ApprovalIDKey, id))
	}
	return a.Clone(), nil
}

func (r *approvalRepository) List(ctx context.Context, opts ...interfaces.ListApprovalOption) ([]*model.Approval, int, error) {
	cfg := interfaces.BuildListApprovalConfig(opts...)

	r.store.mu.RLock()
	matched := make([]*model.Approval, 0, len(r.store.approvals))
	for _, a := range r.store.approvals {
		if cfg.Match(a) {
			matched = append(matched, a.Clone())
		}
	}
	r.store.mu.RUnlock()

	model.SortApprovals(matched)
	return interfaces.Slice(matched, cfg.Page()), len(matched), nil
}

type auditEntryRepository struct {
	store *Memory
}

func (r *auditEntryRepository) ListByApproval(ctx context.Context, approvalID model.ApprovalID) ([]*model.AuditEntry, error) {
	r.store.mu.RLock()
	stored := r.store.auditEntries[approvalID]
	entries := make([]*model.AuditEntry, 0, len(stored))
	for _, e := range stored {
		copied := *e
		entries = append(entries, &copied)
	}
	r.store.mu.RUnlock()

	model.SortAuditEntries(entries)
	return entries, nil
}
