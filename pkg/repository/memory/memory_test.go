package memory_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/repository/memory"
	"golang.org/x/sync/errgroup"
)

func seed(t *testing.T, repo *memory.Memory, ids ...model.VulnerabilityID) {
	t.Helper()
	for _, id := range ids {
		_, err := repo.Vulnerability().Create(context.Background(), &model.Vulnerability{
			ID:        id,
			Name:      "finding " + string(id),
			Source:    "SCA",
			RiskLevel: types.RiskLevelMedium,
		})
		gt.NoError(t, err).Required()
	}
}

func TestRunTransaction_CommitFaultDiscardsWrites(t *testing.T) {
	errInjected := errors.New("injected")
	repo := memory.New(memory.WithFault(func(op, key string) error {
		if op == memory.OpCommit {
			return errInjected
		}
		return nil
	}))
	seed(t, repo, "V-1")
	ctx := context.Background()

	err := repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
		vs, err := tx.LockVulnerabilities(ctx, []model.VulnerabilityID{"V-1"})
		if err != nil {
			return err
		}
		vs[0].ApprovalID = "APP-1"
		if err := tx.PutVulnerability(ctx, vs[0]); err != nil {
			return err
		}
		return tx.PutApproval(ctx, &model.Approval{ID: "APP-1", MemberIDs: []model.VulnerabilityID{"V-1"}})
	})
	gt.Error(t, err).Is(errInjected)

	v, err := repo.Vulnerability().Get(ctx, "V-1")
	gt.NoError(t, err).Required()
	gt.Value(t, v.ApprovalID).Equal(model.ApprovalID(""))

	_, err = repo.Approval().Get(ctx, "APP-1")
	gt.Error(t, err).Is(interfaces.ErrNotFound)
}

func TestRunTransaction_WriteFault(t *testing.T) {
	repo := memory.New(memory.WithFault(func(op, key string) error {
		if op == memory.OpAppendAuditEntry {
			return interfaces.ErrStoreUnavailable
		}
		return nil
	}))
	ctx := context.Background()

	err := repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
		if err := tx.PutApproval(ctx, &model.Approval{ID: "APP-1"}); err != nil {
			return err
		}
		return tx.AppendAuditEntry(ctx, &model.AuditEntry{ID: model.NewAuditEntryID(), ApprovalID: "APP-1"})
	})
	gt.Error(t, err).Is(interfaces.ErrStoreUnavailable)

	_, err = repo.Approval().Get(ctx, "APP-1")
	gt.Error(t, err).Is(interfaces.ErrNotFound)
}

func TestRunTransaction_ReadsOwnWrites(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	err := repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
		if err := tx.PutApproval(ctx, &model.Approval{ID: "APP-1", Title: "draft"}); err != nil {
			return err
		}
		a, err := tx.LockApproval(ctx, "APP-1")
		if err != nil {
			return err
		}
		gt.Value(t, a.Title).Equal("draft")
		return nil
	})
	gt.NoError(t, err).Required()
}

func TestLockVulnerabilities_ReportsMissing(t *testing.T) {
	repo := memory.New()
	seed(t, repo, "V-1")

	err := repo.RunTransaction(context.Background(), func(ctx context.Context, tx interfaces.Transaction) error {
		_, err := tx.LockVulnerabilities(ctx, []model.VulnerabilityID{"V-1", "V-9"})
		return err
	})
	gt.Error(t, err).Is(interfaces.ErrNotFound)
}

func TestLockApproval_Serializes(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	gt.NoError(t, repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
		return tx.PutApproval(ctx, &model.Approval{ID: "APP-1"})
	})).Required()

	var inside, maxInside atomic.Int32
	var eg errgroup.Group
	for i := 0; i < 8; i++ {
		eg.Go(func() error {
			return repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
				a, err := tx.LockApproval(ctx, "APP-1")
				if err != nil {
					return err
				}
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)

				a.AuditSeq++
				return tx.PutApproval(ctx, a)
			})
		})
	}
	gt.NoError(t, eg.Wait()).Required()

	gt.Number(t, maxInside.Load()).Equal(1)
	a, err := repo.Approval().Get(ctx, "APP-1")
	gt.NoError(t, err).Required()
	gt.Number(t, a.AuditSeq).Equal(8)
}

func TestLockApproval_CanceledWait(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	gt.NoError(t, repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
		return tx.PutApproval(ctx, &model.Approval{ID: "APP-1"})
	})).Required()

	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
			if _, err := tx.LockApproval(ctx, "APP-1"); err != nil {
				return err
			}
			close(locked)
			<-done
			return nil
		})
	}()
	<-locked
	defer close(done)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := repo.RunTransaction(waitCtx, func(ctx context.Context, tx interfaces.Transaction) error {
		_, err := tx.LockApproval(ctx, "APP-1")
		return err
	})
	gt.Error(t, err).Is(interfaces.ErrTransactionFailed)
}
