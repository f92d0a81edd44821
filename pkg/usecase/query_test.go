package usecase_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/repository/memory"
	"github.com/secmon-lab/vulnapproval/pkg/service/cache"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
)

func TestApprovalUseCase_Get(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := newTestUseCases(t, repo, usecase.WithCache(cache.NewMemory(time.Hour)))
	registerVuln(t, uc, "V1", "IAST")
	registerVuln(t, uc, "V2", "IAST")
	a := createApproval(t, uc, "V1", "V2")

	detail, err := uc.Approval.Get(ctx, a.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, detail.Approval.ID).Equal(a.ID)
	gt.Array(t, detail.Members).Length(2)
	gt.Array(t, detail.AuditTrail).Length(1)

	t.Run("writes invalidate the cached detail", func(t *testing.T) {
		_, err := uc.Approval.RemoveMember(ctx, a.ID, "V1", "alice")
		gt.NoError(t, err).Required()

		detail, err := uc.Approval.Get(ctx, a.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, detail.Members).Length(1)
		gt.Value(t, detail.Approval.MemberIDs).Equal(ids("V2"))
		gt.Array(t, detail.AuditTrail).Length(2)
	})

	t.Run("missing approval", func(t *testing.T) {
		_, err := uc.Approval.Get(ctx, "APP-missing")
		gt.Error(t, err).Is(usecase.ErrApprovalNotFound)
	})
}

// pausedRepo holds the next member listing after it has read the store until
// release is closed
type pausedRepo struct {
	*memory.Memory
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (r *pausedRepo) Vulnerability() interfaces.VulnerabilityRepository {
	return &pausedVulnerabilities{VulnerabilityRepository: r.Memory.Vulnerability(), repo: r}
}

type pausedVulnerabilities struct {
	interfaces.VulnerabilityRepository
	repo *pausedRepo
}

func (v *pausedVulnerabilities) ListByApproval(ctx context.Context, id model.ApprovalID) ([]*model.Vulnerability, error) {
	vs, err := v.VulnerabilityRepository.ListByApproval(ctx, id)
	if v.repo.armed.CompareAndSwap(true, false) {
		close(v.repo.entered)
		<-v.repo.release
	}
	return vs, err
}

func TestApprovalUseCase_GetOverlappingWrite(t *testing.T) {
	ctx := context.Background()
	repo := &pausedRepo{
		Memory:  memory.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	uc := usecase.New(repo,
		usecase.WithRetryPolicy(fastRetry),
		usecase.WithCache(cache.NewMemory(time.Hour)),
	)
	registerVuln(t, uc, "V1", "IAST")
	registerVuln(t, uc, "V2", "IAST")
	a := createApproval(t, uc, "V1", "V2")

	repo.armed.Store(true)
	type result struct {
		detail *model.ApprovalDetail
		err    error
	}
	done := make(chan result, 1)
	go func() {
		detail, err := uc.Approval.Get(ctx, a.ID)
		done <- result{detail: detail, err: err}
	}()

	<-repo.entered
	_, err := uc.Approval.RemoveMember(ctx, a.ID, "V1", "alice")
	gt.NoError(t, err).Required()
	close(repo.release)

	overlapped := <-done
	gt.NoError(t, overlapped.err).Required()
	gt.Array(t, overlapped.detail.Members).Length(2)

	detail, err := uc.Approval.Get(ctx, a.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, detail.Approval.MemberIDs).Equal(ids("V2"))
	gt.Array(t, detail.Members).Length(1)
	gt.Array(t, detail.AuditTrail).Length(2)
}

func TestApprovalUseCase_HistoryAndMembers(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := newTestUseCases(t, repo)
	_, err := uc.Vulnerability.Register(ctx, usecase.RegisterVulnerabilityInput{
		ID: "low", Name: "low", Source: "SCA", RiskLevel: types.RiskLevelLow,
	})
	gt.NoError(t, err).Required()
	_, err = uc.Vulnerability.Register(ctx, usecase.RegisterVulnerabilityInput{
		ID: "critical", Name: "critical", Source: "SCA", RiskLevel: types.RiskLevelCritical,
	})
	gt.NoError(t, err).Required()
	a := createApproval(t, uc, "low", "critical")
	_, err = uc.Approval.StartDisposal(ctx, a.ID, "bob", "")
	gt.NoError(t, err).Required()

	members, err := uc.Approval.Members(ctx, a.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, members).Length(2).Required()
	gt.Value(t, members[0].ID).Equal(model.VulnerabilityID("critical"))

	history, err := uc.Approval.History(ctx, a.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, history).Length(2).Required()
	gt.Value(t, history[0].Step).Equal(types.AuditStepSubmit)
	gt.Value(t, history[1].Step).Equal(types.AuditStepStartDisposal)

	_, err = uc.Approval.History(ctx, "APP-missing")
	gt.Error(t, err).Is(usecase.ErrApprovalNotFound)
	_, err = uc.Approval.Members(ctx, "")
	gt.Error(t, err).Is(usecase.ErrInvalidArgument)
}

func TestApprovalUseCase_List(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := newTestUseCases(t, repo)
	for _, id := range []string{"V1", "V2", "V3"} {
		registerVuln(t, uc, id, "DAST")
		createApproval(t, uc, id)
	}
	_, err := uc.Approval.RemoveMember(ctx, mustApprovalOf(t, repo, "V1"), "V1", "alice")
	gt.NoError(t, err).Required()

	all, total, err := uc.Approval.List(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, total).Equal(3)
	gt.Array(t, all).Length(3)

	closed, total, err := uc.Approval.List(ctx, interfaces.WithApprovalStatus(types.ApprovalStatusClosed))
	gt.NoError(t, err).Required()
	gt.Number(t, total).Equal(1)
	gt.Array(t, closed).Length(1)
}

func mustApprovalOf(t *testing.T, repo interfaces.Repository, vulnID string) model.ApprovalID {
	t.Helper()
	return getVuln(t, repo, vulnID).ApprovalID
}

func TestVulnerabilityUseCase(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := newTestUseCases(t, repo)

	t.Run("register starts unassigned", func(t *testing.T) {
		v, err := uc.Vulnerability.Register(ctx, usecase.RegisterVulnerabilityInput{
			ID: "V1", Name: "sql injection", Source: "IAST", RiskLevel: types.RiskLevelHigh,
		})
		gt.NoError(t, err).Required()
		gt.Value(t, v.Status).Equal(types.VulnerabilityStatusUnassigned)
		gt.Bool(t, v.Assigned()).False()
	})

	t.Run("duplicate ID", func(t *testing.T) {
		_, err := uc.Vulnerability.Register(ctx, usecase.RegisterVulnerabilityInput{
			ID: "V1", Name: "again", Source: "IAST", RiskLevel: types.RiskLevelHigh,
		})
		gt.Error(t, err).Is(usecase.ErrVulnerabilityExists)
	})

	t.Run("invalid record", func(t *testing.T) {
		_, err := uc.Vulnerability.Register(ctx, usecase.RegisterVulnerabilityInput{ID: "V2"})
		gt.Error(t, err).Is(usecase.ErrInvalidArgument)
	})

	t.Run("get and list", func(t *testing.T) {
		v, err := uc.Vulnerability.Get(ctx, "V1")
		gt.NoError(t, err).Required()
		gt.Value(t, v.Name).Equal("sql injection")

		_, err = uc.Vulnerability.Get(ctx, "V404")
		gt.Error(t, err).Is(usecase.ErrVulnerabilityNotFound)

		vs, total, err := uc.Vulnerability.List(ctx, interfaces.WithSearch("injection"), interfaces.WithUnassignedOnly())
		gt.NoError(t, err).Required()
		gt.Number(t, total).Equal(1)
		gt.Array(t, vs).Length(1)
	})
}
