package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

type vulnerabilityRepository struct {
	store *Memory
}

func (r *vulnerabilityRepository) Create(ctx context.Context, v *model.Vulnerability) (*model.Vulnerability, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.vulnerabilities[v.ID]; exists {
		return nil, goerr.Wrap(interfaces.ErrAlreadyExists, "vulnerability already exists",
			goerr.V(model.VulnerabilityIDKey, v.ID))
	}

	now := time.Now().UTC()
	created := v.Clone()
	if created.Status == "" {
		created.Status = types.VulnerabilityStatusUnassigned
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	r.store.vulnerabilities[created.ID] = created
	return created.Clone(), nil
}

func (r *vulnerabilityRepository) Get(ctx context.Context, id model.VulnerabilityID) (*model.Vulnerability, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	v, exists := r.store.vulnerabilities[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "vulnerability not found",
			goerr.V(model.VulnerabilityIDKey, id))
	}
	return v.Clone(), nil
}

func (r *vulnerabilityRepository) List(ctx context.Context, opts ...interfaces.ListVulnerabilityOption) ([]*model.Vulnerability, int, error) {
	cfg := interfaces.BuildListVulnerabilityConfig(opts...)

	r.store.mu.RLock()
	matched := make([]*model.Vulnerability, 0, len(r.store.vulnerabilities))
	for _, v := range r.store.vulnerabilities {
		if cfg.Match(v) {
			matched = append(matched, v.Clone())
		}
	}
	r.store.mu.RUnlock()

	model.SortVulnerabilities(matched)
	return interfaces.Slice(matched, cfg.Page()), len(matched), nil
}

func (r *vulnerabilityRepository) ListByApproval(ctx context.Context, approvalID model.ApprovalID) ([]*model.Vulnerability, error) {
	r.store.mu.RLock()
	var members []*model.Vulnerability
	for _, v := range r.store.vulnerabilities {
		if v.ApprovalID == approvalID {
			members = append(members, v.Clone())
		}
	}
	r.store.mu.RUnlock()

	model.SortVulnerabilities(members)
	return members, nil
}
