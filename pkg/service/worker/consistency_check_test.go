package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/service/worker"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
)

type mockChecker struct {
	mu     sync.Mutex
	calls  int
	result []usecase.Discrepancy
	err    error
}

func (m *mockChecker) CheckConsistency(ctx context.Context) ([]usecase.Discrepancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockChecker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockChecker) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConsistencyCheckWorker_InitialRun(t *testing.T) {
	checker := &mockChecker{
		result: []usecase.Discrepancy{
			{Kind: usecase.DiscrepancyDanglingLink, ApprovalID: model.ApprovalID("APP-x"), VulnerabilityID: "V-1"},
		},
	}
	w := worker.NewConsistencyCheckWorker(checker, time.Hour)

	gt.NoError(t, w.Start(context.Background())).Required()
	defer w.Stop()

	waitFor(t, func() bool {
		_, at := w.LastResult()
		return !at.IsZero()
	})

	found, _ := w.LastResult()
	gt.Array(t, found).Length(1)
	gt.Value(t, found[0].Kind).Equal(usecase.DiscrepancyDanglingLink)
}

func TestConsistencyCheckWorker_PeriodicRun(t *testing.T) {
	checker := &mockChecker{}
	w := worker.NewConsistencyCheckWorker(checker, 20*time.Millisecond)

	gt.NoError(t, w.Start(context.Background())).Required()
	defer w.Stop()

	waitFor(t, func() bool { return checker.callCount() >= 3 })
}

func TestConsistencyCheckWorker_KeepsRunningAfterError(t *testing.T) {
	checker := &mockChecker{}
	checker.setErr(errors.New("store down"))
	w := worker.NewConsistencyCheckWorker(checker, 20*time.Millisecond)

	gt.NoError(t, w.Start(context.Background())).Required()
	defer w.Stop()

	waitFor(t, func() bool { return checker.callCount() >= 2 })
	_, at := w.LastResult()
	gt.Bool(t, at.IsZero()).True()

	checker.setErr(nil)
	waitFor(t, func() bool {
		_, at := w.LastResult()
		return !at.IsZero()
	})
}

func TestConsistencyCheckWorker_StopsCleanly(t *testing.T) {
	w := worker.NewConsistencyCheckWorker(&mockChecker{}, time.Hour)
	gt.NoError(t, w.Start(context.Background())).Required()

	started := time.Now()
	w.Stop()
	w.Stop()
	gt.Bool(t, time.Since(started) < time.Second).True()
}

func TestConsistencyCheckWorker_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := worker.NewConsistencyCheckWorker(&mockChecker{}, time.Hour)
	gt.NoError(t, w.Start(ctx)).Required()

	cancel()
	w.Stop()
}
