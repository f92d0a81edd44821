package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type approvalRepository struct {
	store *Firestore
}

func (r *approvalRepository) Get(ctx context.Context, id model.ApprovalID) (*model.Approval, error) {
	snap, err := r.store.approvals().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "approval not found",
				goerr.V(model.ApprovalIDKey, id))
		}
		return nil, goerr.Wrap(classify(err), "failed to get approval", goerr.V(model.ApprovalIDKey, id))
	}

	var d approvalDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode approval", goerr.V(model.ApprovalIDKey, id))
	}
	return fromApprovalDoc(&d), nil
}

func (r *approvalRepository) List(ctx context.Context, opts ...interfaces.ListApprovalOption) ([]*model.Approval, int, error) {
	cfg := interfaces.BuildListApprovalConfig(opts...)

	query := r.store.approvals().Query
	if st := cfg.Status(); st != nil {
		query = query.Where("Status", "==", string(*st))
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var approvals []*model.Approval
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, goerr.Wrap(classify(err), "failed to iterate approvals")
		}

		var d approvalDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, 0, goerr.Wrap(err, "failed to decode approval", goerr.V(model.ApprovalIDKey, snap.Ref.ID))
		}
		approvals = append(approvals, fromApprovalDoc(&d))
	}

	model.SortApprovals(approvals)
	return interfaces.Slice(approvals, cfg.Page()), len(approvals), nil
}

type auditEntryRepository struct {
	store *Firestore
}

func (r *auditEntryRepository) ListByApproval(ctx context.Context, approvalID model.ApprovalID) ([]*model.AuditEntry, error) {
	iter := r.store.auditEntries(string(approvalID)).
		OrderBy("Time", firestore.Asc).
		OrderBy("Seq", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	entries := make([]*model.AuditEntry, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(classify(err), "failed to iterate audit entries", goerr.V(model.ApprovalIDKey, approvalID))
		}

		var d auditEntryDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode audit entry", goerr.V(model.ApprovalIDKey, approvalID))
		}
		entries = append(entries, fromAuditEntryDoc(&d))
	}
	return entries, nil
}
