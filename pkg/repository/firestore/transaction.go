package firestore

import (
	"context"
	"slices"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// transaction adapts firestore.Transaction. Firestore forbids reads after
// writes in one transaction, so reads of records this transaction already
// wrote are served from the local write set.
type transaction struct {
	store *Firestore
	tx    *firestore.Transaction

	approvals       map[model.ApprovalID]*model.Approval
	vulnerabilities map[model.VulnerabilityID]*model.Vulnerability
}

var _ interfaces.Transaction = &transaction{}

func newTransaction(store *Firestore, tx *firestore.Transaction) *transaction {
	return &transaction{
		store:           store,
		tx:              tx,
		approvals:       make(map[model.ApprovalID]*model.Approval),
		vulnerabilities: make(map[model.VulnerabilityID]*model.Vulnerability),
	}
}

func (t *transaction) LockApproval(ctx context.Context, id model.ApprovalID) (*model.Approval, error) {
	if a, ok := t.approvals[id]; ok {
		return a.Clone(), nil
	}

	snap, err := t.tx.Get(t.store.approvals().Doc(string(id)))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "approval not found",
				goerr.V(model.ApprovalIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get approval", goerr.V(model.ApprovalIDKey, id))
	}

	var d approvalDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode approval", goerr.V(model.ApprovalIDKey, id))
	}
	return fromApprovalDoc(&d), nil
}

func (t *transaction) LockVulnerabilities(ctx context.Context, ids []model.VulnerabilityID) ([]*model.Vulnerability, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var refs []*firestore.DocumentRef
	for _, id := range sorted {
		if _, ok := t.vulnerabilities[id]; !ok {
			refs = append(refs, t.store.vulnerabilities().Doc(string(id)))
		}
	}

	fetched := make(map[model.VulnerabilityID]*model.Vulnerability, len(refs))
	if len(refs) > 0 {
		snaps, err := t.tx.GetAll(refs)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get vulnerabilities")
		}
		for _, snap := range snaps {
			if !snap.Exists() {
				continue
			}
			var d vulnerabilityDoc
			if err := snap.DataTo(&d); err != nil {
				return nil, goerr.Wrap(err, "failed to decode vulnerability", goerr.V(model.VulnerabilityIDKey, snap.Ref.ID))
			}
			v := fromVulnerabilityDoc(&d)
			fetched[v.ID] = v
		}
	}

	result := make([]*model.Vulnerability, 0, len(ids))
	var missing []model.VulnerabilityID
	for _, id := range ids {
		if v, ok := t.vulnerabilities[id]; ok {
			result = append(result, v.Clone())
			continue
		}
		v, ok := fetched[id]
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
	if err := t.tx.Set(t.store.approvals().Doc(string(a.ID)), toApprovalDoc(a)); err != nil {
		return goerr.Wrap(err, "failed to put approval", goerr.V(model.ApprovalIDKey, a.ID))
	}
	t.approvals[a.ID] = a.Clone()
	return nil
}

func (t *transaction) PutVulnerability(ctx context.Context, v *model.Vulnerability) error {
	if err := t.tx.Set(t.store.vulnerabilities().Doc(string(v.ID)), toVulnerabilityDoc(v)); err != nil {
		return goerr.Wrap(err, "failed to put vulnerability", goerr.V(model.VulnerabilityIDKey, v.ID))
	}
	t.vulnerabilities[v.ID] = v.Clone()
	return nil
}

func (t *transaction) AppendAuditEntry(ctx context.Context, e *model.AuditEntry) error {
	ref := t.store.auditEntries(string(e.ApprovalID)).Doc(string(e.ID))
	if err := t.tx.Create(ref, toAuditEntryDoc(e)); err != nil {
		return goerr.Wrap(err, "failed to append audit entry", goerr.V(model.ApprovalIDKey, e.ApprovalID))
	}
	return nil
}
