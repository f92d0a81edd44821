package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/utils/errutil"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
)

func (uc *ApprovalUseCase) getApproval(ctx context.Context, id model.ApprovalID) (*model.Approval, error) {
	if id == "" {
		return nil, goerr.Wrap(ErrInvalidArgument, "approval ID is required")
	}
	a, err := uc.repo.Approval().Get(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, ErrApprovalNotFound, "approval not found")
	}
	return a, nil
}

// Get returns an approval with its members and audit trail. Results are served
// from the cache when present; cache failures fall back to the store. A read
// that overlaps a committed write is returned but not cached.
func (uc *ApprovalUseCase) Get(ctx context.Context, id model.ApprovalID) (*model.ApprovalDetail, error) {
	cached, err := uc.cache.Get(ctx, id)
	if err != nil {
		_ = errutil.Handle(ctx, err, "failed to read approval cache")
	} else if cached != nil {
		logging.From(ctx).Debug("approval cache hit", "approval_id", id)
		return cached, nil
	}

	// taken before the store reads so a write committed meanwhile voids the Put
	gen, genErr := uc.cache.Generation(ctx, id)
	if genErr != nil {
		_ = errutil.Handle(ctx, genErr, "failed to read approval cache generation")
	}

	a, err := uc.getApproval(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := uc.repo.Vulnerability().ListByApproval(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list members", goerr.V(ApprovalIDKey, id))
	}
	trail, err := uc.repo.AuditEntry().ListByApproval(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list audit trail", goerr.V(ApprovalIDKey, id))
	}

	detail := &model.ApprovalDetail{
		Approval:   a,
		Members:    members,
		AuditTrail: trail,
	}
	if genErr == nil {
		if err := uc.cache.Put(ctx, detail, gen); err != nil {
			_ = errutil.Handle(ctx, err, "failed to write approval cache")
		}
	}
	return detail, nil
}

// List returns one page of approvals, newest first, and the total count
func (uc *ApprovalUseCase) List(ctx context.Context, opts ...interfaces.ListApprovalOption) ([]*model.Approval, int, error) {
	approvals, total, err := uc.repo.Approval().List(ctx, opts...)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to list approvals")
	}
	return approvals, total, nil
}

// History returns the audit trail ordered by time
func (uc *ApprovalUseCase) History(ctx context.Context, id model.ApprovalID) ([]*model.AuditEntry, error) {
	if _, err := uc.getApproval(ctx, id); err != nil {
		return nil, err
	}
	trail, err := uc.repo.AuditEntry().ListByApproval(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list audit trail", goerr.V(ApprovalIDKey, id))
	}
	return trail, nil
}

// Members returns the vulnerabilities of an approval, highest risk first
func (uc *ApprovalUseCase) Members(ctx context.Context, id model.ApprovalID) ([]*model.Vulnerability, error) {
	if _, err := uc.getApproval(ctx, id); err != nil {
		return nil, err
	}
	members, err := uc.repo.Vulnerability().ListByApproval(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list members", goerr.V(ApprovalIDKey, id))
	}
	return members, nil
}
