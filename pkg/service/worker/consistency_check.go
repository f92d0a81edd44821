package worker

import (
	"context"
	"sync"
	"time"

	"github.com/secmon-lab/vulnapproval/pkg/usecase"
	"github.com/secmon-lab/vulnapproval/pkg/utils/errutil"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
)

// ConsistencyChecker reports broken approval/vulnerability links
type ConsistencyChecker interface {
	CheckConsistency(ctx context.Context) ([]usecase.Discrepancy, error)
}

// ConsistencyCheckWorker periodically verifies that both sides of every
// membership link agree and logs what it finds. It never repairs data.
//
// Every server instance runs its own worker; the check is read-only so
// duplicate runs are harmless.
type ConsistencyCheckWorker struct {
	checker  ConsistencyChecker
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	mu         sync.Mutex
	lastResult []usecase.Discrepancy
	lastRun    time.Time
}

// NewConsistencyCheckWorker creates a worker that runs checker every interval
func NewConsistencyCheckWorker(checker ConsistencyChecker, interval time.Duration) *ConsistencyCheckWorker {
	return &ConsistencyCheckWorker{
		checker:  checker,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the first check and the periodic loop in a background goroutine
func (w *ConsistencyCheckWorker) Start(ctx context.Context) error {
	logging.Default().Info("consistency check worker starting",
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *ConsistencyCheckWorker) Stop() {
	w.stopOnce.Do(func() {
		logging.Default().Info("consistency check worker stopping")
		close(w.stopCh)
	})
	<-w.doneCh
}

// LastResult returns the discrepancies of the latest finished run and when it finished
func (w *ConsistencyCheckWorker) LastResult() ([]usecase.Discrepancy, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastResult, w.lastRun
}

func (w *ConsistencyCheckWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check(ctx)

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("consistency check worker context cancelled")
			return
		}
	}
}

func (w *ConsistencyCheckWorker) check(ctx context.Context) {
	started := time.Now()
	found, err := w.checker.CheckConsistency(ctx)
	if err != nil {
		// retried on the next tick
		_ = errutil.Handle(ctx, err, "consistency check failed")
		return
	}

	w.mu.Lock()
	w.lastResult = found
	w.lastRun = time.Now()
	w.mu.Unlock()

	logger := logging.From(ctx)
	for _, d := range found {
		logger.Warn("membership inconsistency",
			"kind", d.Kind,
			"approval_id", d.ApprovalID,
			"vulnerability_id", d.VulnerabilityID)
	}
	logger.Info("consistency check finished",
		"discrepancies", len(found),
		"duration", time.Since(started).String())
}
