package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

// VulnerabilityUseCase manages vulnerability records. It never touches
// membership; that belongs to ApprovalUseCase.
type VulnerabilityUseCase struct {
	repo interfaces.Repository
}

// RegisterVulnerabilityInput describes a newly discovered vulnerability
type RegisterVulnerabilityInput struct {
	ID            model.VulnerabilityID
	Name          string
	Source        string
	ProjectNumber string
	RiskLevel     types.RiskLevel
	Description   string
	DiscoveredAt  time.Time
}

// Register stores a new, unassigned vulnerability
func (uc *VulnerabilityUseCase) Register(ctx context.Context, in RegisterVulnerabilityInput) (*model.Vulnerability, error) {
	v := &model.Vulnerability{
		ID:            in.ID,
		Name:          in.Name,
		Source:        in.Source,
		ProjectNumber: in.ProjectNumber,
		RiskLevel:     in.RiskLevel,
		Status:        types.VulnerabilityStatusUnassigned,
		Description:   in.Description,
		DiscoveredAt:  in.DiscoveredAt,
	}
	if err := v.Validate(); err != nil {
		return nil, goerr.Wrap(ErrInvalidArgument, err.Error(), goerr.V(VulnerabilityIDKey, in.ID))
	}

	created, err := uc.repo.Vulnerability().Create(ctx, v)
	if err != nil {
		if errors.Is(err, interfaces.ErrAlreadyExists) {
			return nil, goerr.Wrap(ErrVulnerabilityExists, "vulnerability ID is taken", goerr.V(VulnerabilityIDKey, in.ID))
		}
		return nil, goerr.Wrap(err, "failed to create vulnerability", goerr.V(VulnerabilityIDKey, in.ID))
	}
	return created, nil
}

// Get retrieves a vulnerability by ID
func (uc *VulnerabilityUseCase) Get(ctx context.Context, id model.VulnerabilityID) (*model.Vulnerability, error) {
	if id == "" {
		return nil, goerr.Wrap(ErrInvalidArgument, "vulnerability ID is required")
	}
	v, err := uc.repo.Vulnerability().Get(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, ErrVulnerabilityNotFound, "vulnerability not found")
	}
	return v, nil
}

// List returns one page of vulnerabilities and the total count
func (uc *VulnerabilityUseCase) List(ctx context.Context, opts ...interfaces.ListVulnerabilityOption) ([]*model.Vulnerability, int, error) {
	vs, total, err := uc.repo.Vulnerability().List(ctx, opts...)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to list vulnerabilities")
	}
	return vs, total, nil
}
