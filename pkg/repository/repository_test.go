package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/repository/firestore"
	"github.com/secmon-lab/vulnapproval/pkg/repository/memory"
	"github.com/secmon-lab/vulnapproval/pkg/repository/postgres"
)

func newMemoryRepository(t *testing.T) interfaces.Repository {
	return memory.New()
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

// newPostgresRepository isolates each test in its own schema. The pool is
// pinned to one connection so the search_path sticks.
func newPostgresRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := sql.Open("postgres", dsn)
	gt.NoError(t, err).Required()
	db.SetMaxOpenConns(1)

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s; SET search_path TO %s", schema, schema))
	gt.NoError(t, err).Required()

	repo := postgres.NewWithDB(db)
	gt.NoError(t, repo.Migrate(ctx)).Required()

	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		gt.NoError(t, repo.Close())
	})
	return repo
}

func backends() map[string]func(t *testing.T) interfaces.Repository {
	return map[string]func(t *testing.T) interfaces.Repository{
		"memory":    newMemoryRepository,
		"firestore": newFirestoreRepository,
		"postgres":  newPostgresRepository,
	}
}

func newVulnerability(id string, risk types.RiskLevel, discovered time.Time) *model.Vulnerability {
	return &model.Vulnerability{
		ID:           model.VulnerabilityID(id),
		Name:         "finding " + id,
		Source:       "SCA",
		RiskLevel:    risk,
		DiscoveredAt: discovered,
	}
}

func TestVulnerabilityRepository(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			runVulnerabilityRepositoryTest(t, newRepo)
		})
	}
}

func runVulnerabilityRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create and Get round trip", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		discovered := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

		v := newVulnerability("V-"+uuid.NewString(), types.RiskLevelHigh, discovered)
		v.ProjectNumber = "PRJ-1"
		v.Description = "outdated library"
		created, err := repo.Vulnerability().Create(ctx, v)
		gt.NoError(t, err).Required()
		gt.Value(t, created.Status).Equal(types.VulnerabilityStatusUnassigned)
		gt.Bool(t, created.CreatedAt.IsZero()).False()

		got, err := repo.Vulnerability().Get(ctx, v.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal(v.Name)
		gt.Value(t, got.ProjectNumber).Equal("PRJ-1")
		gt.Value(t, got.Description).Equal("outdated library")
		gt.Value(t, got.ApprovalID).Equal(model.ApprovalID(""))
		gt.Bool(t, got.DiscoveredAt.Equal(discovered)).True()
	})

	t.Run("Create rejects a duplicate ID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		v := newVulnerability("V-"+uuid.NewString(), types.RiskLevelLow, time.Time{})
		_, err := repo.Vulnerability().Create(ctx, v)
		gt.NoError(t, err).Required()

		_, err = repo.Vulnerability().Create(ctx, v)
		gt.Error(t, err).Is(interfaces.ErrAlreadyExists)
	})

	t.Run("Get returns ErrNotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Vulnerability().Get(context.Background(), model.VulnerabilityID("V-"+uuid.NewString()))
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("List filters, orders and pages", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		tag := strings.ReplaceAll(uuid.NewString(), "-", "")

		for i, risk := range []types.RiskLevel{types.RiskLevelLow, types.RiskLevelCritical, types.RiskLevelHigh, types.RiskLevelHigh} {
			v := newVulnerability(fmt.Sprintf("V-%s-%d", tag, i), risk, base.Add(time.Duration(i)*time.Hour))
			v.Name = fmt.Sprintf("%s finding %d", tag, i)
			_, err := repo.Vulnerability().Create(ctx, v)
			gt.NoError(t, err).Required()
		}

		vs, total, err := repo.Vulnerability().List(ctx, interfaces.WithSearch(tag))
		gt.NoError(t, err).Required()
		gt.Number(t, total).Equal(4)
		gt.Array(t, vs).Length(4)
		gt.Value(t, vs[0].RiskLevel).Equal(types.RiskLevelCritical)
		// same risk level: newer discovery first
		gt.Value(t, vs[1].ID).Equal(model.VulnerabilityID(fmt.Sprintf("V-%s-3", tag)))
		gt.Value(t, vs[2].ID).Equal(model.VulnerabilityID(fmt.Sprintf("V-%s-2", tag)))
		gt.Value(t, vs[3].RiskLevel).Equal(types.RiskLevelLow)

		page, total, err := repo.Vulnerability().List(ctx,
			interfaces.WithSearch(tag),
			interfaces.WithVulnerabilityPage(interfaces.Page{Number: 2, Size: 3}))
		gt.NoError(t, err).Required()
		gt.Number(t, total).Equal(4)
		gt.Array(t, page).Length(1)

		highs, total, err := repo.Vulnerability().List(ctx,
			interfaces.WithSearch(tag),
			interfaces.WithRiskLevel(types.RiskLevelHigh))
		gt.NoError(t, err).Required()
		gt.Number(t, total).Equal(2)
		gt.Array(t, highs).Length(2)
	})
}

func TestTransaction(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			runTransactionTest(t, newRepo)
		})
	}
}

func runTransactionTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("committed writes are visible to readers", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		v1 := newVulnerability("V-"+uuid.NewString(), types.RiskLevelHigh, now)
		v2 := newVulnerability("V-"+uuid.NewString(), types.RiskLevelLow, now)
		for _, v := range []*model.Vulnerability{v1, v2} {
			_, err := repo.Vulnerability().Create(ctx, v)
			gt.NoError(t, err).Required()
		}

		approvalID := model.NewApprovalID()
		err := repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
			vs, err := tx.LockVulnerabilities(ctx, []model.VulnerabilityID{v2.ID, v1.ID})
			if err != nil {
				return err
			}
			gt.Value(t, vs[0].ID).Equal(v2.ID)

			a := &model.Approval{
				ID:        approvalID,
				Title:     "batch",
				Priority:  types.PriorityUrgent,
				Partition: "SCA",
				Status:    types.ApprovalStatusCreated,
				AuditSeq:  1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			for _, v := range vs {
				v.ApprovalID = approvalID
				v.Status = types.VulnerabilityStatusPending
				a.AddMembers(v.ID)
				if err := tx.PutVulnerability(ctx, v); err != nil {
					return err
				}
			}
			if err := tx.AppendAuditEntry(ctx, &model.AuditEntry{
				ID:         model.NewAuditEntryID(),
				ApprovalID: approvalID,
				Seq:        1,
				Step:       types.AuditStepSubmit,
				Operator:   "alice",
				Time:       now,
			}); err != nil {
				return err
			}
			return tx.PutApproval(ctx, a)
		})
		gt.NoError(t, err).Required()

		a, err := repo.Approval().Get(ctx, approvalID)
		gt.NoError(t, err).Required()
		gt.Array(t, a.MemberIDs).Length(2)
		gt.Value(t, a.Priority).Equal(types.PriorityUrgent)
		gt.Number(t, a.AuditSeq).Equal(1)

		members, err := repo.Vulnerability().ListByApproval(ctx, approvalID)
		gt.NoError(t, err).Required()
		gt.Array(t, members).Length(2)
		gt.Value(t, members[0].ID).Equal(v1.ID)
		gt.Value(t, members[0].Status).Equal(types.VulnerabilityStatusPending)

		entries, err := repo.AuditEntry().ListByApproval(ctx, approvalID)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(1)
		gt.Value(t, entries[0].Step).Equal(types.AuditStepSubmit)
		gt.Value(t, entries[0].Operator).Equal("alice")
	})

	t.Run("an error from the body discards every write", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		v := newVulnerability("V-"+uuid.NewString(), types.RiskLevelMedium, time.Time{})
		_, err := repo.Vulnerability().Create(ctx, v)
		gt.NoError(t, err).Required()

		errAbort := fmt.Errorf("abort")
		approvalID := model.NewApprovalID()
		err = repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
			vs, err := tx.LockVulnerabilities(ctx, []model.VulnerabilityID{v.ID})
			if err != nil {
				return err
			}
			vs[0].ApprovalID = approvalID
			if err := tx.PutVulnerability(ctx, vs[0]); err != nil {
				return err
			}
			if err := tx.PutApproval(ctx, &model.Approval{ID: approvalID, Status: types.ApprovalStatusCreated, CreatedAt: time.Now(), UpdatedAt: time.Now()}); err != nil {
				return err
			}
			return errAbort
		})
		gt.Error(t, err).Is(errAbort)

		got, err := repo.Vulnerability().Get(ctx, v.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ApprovalID).Equal(model.ApprovalID(""))

		_, err = repo.Approval().Get(ctx, approvalID)
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("LockApproval reports a missing approval", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.RunTransaction(context.Background(), func(ctx context.Context, tx interfaces.Transaction) error {
			_, err := tx.LockApproval(ctx, model.NewApprovalID())
			return err
		})
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("audit trail is ordered by time then sequence", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)
		approvalID := model.NewApprovalID()

		err := repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
			if err := tx.PutApproval(ctx, &model.Approval{ID: approvalID, Status: types.ApprovalStatusCreated, CreatedAt: now, UpdatedAt: now}); err != nil {
				return err
			}
			for _, e := range []*model.AuditEntry{
				{Seq: 3, Step: types.AuditStepRemoveMember, Time: now.Add(time.Second)},
				{Seq: 2, Step: types.AuditStepAssign, Time: now},
				{Seq: 1, Step: types.AuditStepSubmit, Time: now},
			} {
				e.ID = model.NewAuditEntryID()
				e.ApprovalID = approvalID
				if err := tx.AppendAuditEntry(ctx, e); err != nil {
					return err
				}
			}
			return nil
		})
		gt.NoError(t, err).Required()

		entries, err := repo.AuditEntry().ListByApproval(ctx, approvalID)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(3)
		for i, e := range entries {
			gt.Number(t, e.Seq).Equal(int64(i + 1))
		}
	})
}

func TestApprovalRepository_List(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

			statuses := []types.ApprovalStatus{
				types.ApprovalStatusCreated,
				types.ApprovalStatusClosed,
				types.ApprovalStatusCreated,
			}
			var ids []model.ApprovalID
			for i, st := range statuses {
				id := model.NewApprovalID()
				ids = append(ids, id)
				at := base.Add(time.Duration(i) * time.Hour)
				err := repo.RunTransaction(ctx, func(ctx context.Context, tx interfaces.Transaction) error {
					return tx.PutApproval(ctx, &model.Approval{ID: id, Status: st, CreatedAt: at, UpdatedAt: at})
				})
				gt.NoError(t, err).Required()
			}

			all, total, err := repo.Approval().List(ctx)
			gt.NoError(t, err).Required()
			gt.Number(t, total).Equal(3)
			gt.Value(t, all[0].ID).Equal(ids[2])
			gt.Value(t, all[2].ID).Equal(ids[0])

			created, total, err := repo.Approval().List(ctx, interfaces.WithApprovalStatus(types.ApprovalStatusCreated))
			gt.NoError(t, err).Required()
			gt.Number(t, total).Equal(2)
			gt.Array(t, created).Length(2)

			page, total, err := repo.Approval().List(ctx, interfaces.WithApprovalPage(interfaces.Page{Number: 2, Size: 2}))
			gt.NoError(t, err).Required()
			gt.Number(t, total).Equal(3)
			gt.Array(t, page).Length(1)
			gt.Value(t, page[0].ID).Equal(ids[0])
		})
	}
}
