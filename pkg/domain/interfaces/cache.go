package interfaces

import (
	"context"

	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
)

// ApprovalCache is a read-side cache of approval details. It is never
// authoritative; writers invalidate the affected approvals after commit.
//
// A reader takes a Generation before reading the store and hands it to Put.
// Invalidate advances the generation, so a Put carrying a generation taken
// before an invalidation is dropped instead of caching a pre-write read.
type ApprovalCache interface {
	// Get returns the cached detail, or nil, nil on a miss
	Get(ctx context.Context, id model.ApprovalID) (*model.ApprovalDetail, error)
	Generation(ctx context.Context, id model.ApprovalID) (uint64, error)
	// Put stores detail only if gen is still the current generation
	Put(ctx context.Context, detail *model.ApprovalDetail, gen uint64) error
	Invalidate(ctx context.Context, ids ...model.ApprovalID) error
}
