package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type vulnerabilityRepository struct {
	store *Firestore
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

	if _, err := r.store.vulnerabilities().Doc(string(created.ID)).Create(ctx, toVulnerabilityDoc(created)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.Wrap(interfaces.ErrAlreadyExists, "vulnerability already exists",
				goerr.V(model.VulnerabilityIDKey, created.ID))
		}
		return nil, goerr.Wrap(classify(err), "failed to create vulnerability", goerr.V(model.VulnerabilityIDKey, created.ID))
	}

	return created, nil
}

func (r *vulnerabilityRepository) Get(ctx context.Context, id model.VulnerabilityID) (*model.Vulnerability, error) {
	snap, err := r.store.vulnerabilities().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "vulnerability not found",
				goerr.V(model.VulnerabilityIDKey, id))
		}
		return nil, goerr.Wrap(classify(err), "failed to get vulnerability", goerr.V(model.VulnerabilityIDKey, id))
	}

	var d vulnerabilityDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode vulnerability", goerr.V(model.VulnerabilityIDKey, id))
	}
	return fromVulnerabilityDoc(&d), nil
}

// List pushes equality filters down to Firestore and applies search, ordering
// and paging in memory.
func (r *vulnerabilityRepository) List(ctx context.Context, opts ...interfaces.ListVulnerabilityOption) ([]*model.Vulnerability, int, error) {
	cfg := interfaces.BuildListVulnerabilityConfig(opts...)

	query := r.store.vulnerabilities().Query
	if level := cfg.RiskLevel(); level != nil {
		query = query.Where("RiskLevel", "==", string(*level))
	}
	if st := cfg.Status(); st != nil {
		query = query.Where("Status", "==", string(*st))
	}
	if cfg.UnassignedOnly() {
		query = query.Where("ApprovalID", "==", "")
	}

	all, err := r.collect(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	matched := make([]*model.Vulnerability, 0, len(all))
	for _, v := range all {
		if cfg.Match(v) {
			matched = append(matched, v)
		}
	}
	model.SortVulnerabilities(matched)
	return interfaces.Slice(matched, cfg.Page()), len(matched), nil
}

func (r *vulnerabilityRepository) ListByApproval(ctx context.Context, approvalID model.ApprovalID) ([]*model.Vulnerability, error) {
	members, err := r.collect(ctx, r.store.vulnerabilities().Where("ApprovalID", "==", string(approvalID)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list approval members", goerr.V(model.ApprovalIDKey, approvalID))
	}
	model.SortVulnerabilities(members)
	return members, nil
}

func (r *vulnerabilityRepository) collect(ctx context.Context, query firestore.Query) ([]*model.Vulnerability, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var result []*model.Vulnerability
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(classify(err), "failed to iterate vulnerabilities")
		}

		var d vulnerabilityDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode vulnerability", goerr.V(model.VulnerabilityIDKey, snap.Ref.ID))
		}
		result = append(result, fromVulnerabilityDoc(&d))
	}
	return result, nil
}
