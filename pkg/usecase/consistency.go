package usecase

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"golang.org/x/sync/errgroup"
)

// DiscrepancyKind classifies a broken link between approvals and vulnerabilities
type DiscrepancyKind string

const (
	DiscrepancyMissingBackLink   DiscrepancyKind = "missing_back_link"  // member whose ApprovalID points elsewhere
	DiscrepancyUnlistedMember    DiscrepancyKind = "unlisted_member"    // vulnerability pointing at an approval that does not list it
	DiscrepancyDanglingLink      DiscrepancyKind = "dangling_link"      // vulnerability pointing at a missing approval
	DiscrepancyClosedWithMember  DiscrepancyKind = "closed_with_member" // closed without a decision yet still holding members
	DiscrepancyOpenWithoutMember DiscrepancyKind = "open_without_member"
)

// Discrepancy is one violation found by CheckConsistency
type Discrepancy struct {
	Kind            DiscrepancyKind
	ApprovalID      model.ApprovalID
	VulnerabilityID model.VulnerabilityID
}

const consistencyCheckConcurrency = 8

// CheckConsistency compares both sides of every membership link in committed
// state. It only reads; repairs are left to operators.
func (uc *ApprovalUseCase) CheckConsistency(ctx context.Context) ([]Discrepancy, error) {
	var (
		mu     sync.Mutex
		found  []Discrepancy
		report = func(d Discrepancy) {
			mu.Lock()
			defer mu.Unlock()
			found = append(found, d)
		}
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(consistencyCheckConcurrency)

	err := walkPages(func(p interfaces.Page) (int, int, error) {
		approvals, total, err := uc.repo.Approval().List(ctx, interfaces.WithApprovalPage(p))
		if err != nil {
			return 0, 0, goerr.Wrap(err, "failed to list approvals", goerr.V("page", p.Number))
		}
		for _, a := range approvals {
			eg.Go(func() error {
				return uc.checkApproval(egCtx, a, report)
			})
		}
		return len(approvals), total, nil
	})
	if err != nil {
		_ = eg.Wait()
		return nil, err
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// vulnerabilities whose approval no longer exists are invisible from the approval side
	err = walkPages(func(p interfaces.Page) (int, int, error) {
		vs, total, err := uc.repo.Vulnerability().List(ctx, interfaces.WithVulnerabilityPage(p))
		if err != nil {
			return 0, 0, goerr.Wrap(err, "failed to list vulnerabilities", goerr.V("page", p.Number))
		}
		for _, v := range vs {
			if !v.Assigned() {
				continue
			}
			_, err := uc.repo.Approval().Get(ctx, v.ApprovalID)
			switch {
			case errors.Is(err, interfaces.ErrNotFound):
				report(Discrepancy{Kind: DiscrepancyDanglingLink, ApprovalID: v.ApprovalID, VulnerabilityID: v.ID})
			case err != nil:
				return 0, 0, goerr.Wrap(err, "failed to get approval", goerr.V(ApprovalIDKey, v.ApprovalID))
			}
		}
		return len(vs), total, nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(found, func(a, b Discrepancy) int {
		return cmp.Or(
			cmp.Compare(a.ApprovalID, b.ApprovalID),
			cmp.Compare(a.VulnerabilityID, b.VulnerabilityID),
			cmp.Compare(a.Kind, b.Kind),
		)
	})
	return found, nil
}

func (uc *ApprovalUseCase) checkApproval(ctx context.Context, a *model.Approval, report func(Discrepancy)) error {
	linked, err := uc.repo.Vulnerability().ListByApproval(ctx, a.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to list members", goerr.V(ApprovalIDKey, a.ID))
	}

	linkedIDs := make(map[model.VulnerabilityID]struct{}, len(linked))
	for _, v := range linked {
		linkedIDs[v.ID] = struct{}{}
		if !a.HasMember(v.ID) {
			report(Discrepancy{Kind: DiscrepancyUnlistedMember, ApprovalID: a.ID, VulnerabilityID: v.ID})
		}
	}
	for _, id := range a.MemberIDs {
		if _, ok := linkedIDs[id]; !ok {
			report(Discrepancy{Kind: DiscrepancyMissingBackLink, ApprovalID: a.ID, VulnerabilityID: id})
		}
	}

	switch {
	// an approved approval keeps its members; only auto-closure must leave none
	case a.Status.IsTerminal() && len(a.MemberIDs) > 0 && a.Conclusion == "":
		report(Discrepancy{Kind: DiscrepancyClosedWithMember, ApprovalID: a.ID})
	case !a.Status.IsTerminal() && len(a.MemberIDs) == 0:
		report(Discrepancy{Kind: DiscrepancyOpenWithoutMember, ApprovalID: a.ID})
	}
	return nil
}

// walkPages calls fetch with successive pages until every item has been seen
func walkPages(fetch func(p interfaces.Page) (n, total int, err error)) error {
	p := interfaces.Page{Number: 1, Size: interfaces.MaxPageSize}
	seen := 0
	for {
		n, total, err := fetch(p)
		if err != nil {
			return err
		}
		seen += n
		if n == 0 || seen >= total {
			return nil
		}
		p.Number++
	}
}
