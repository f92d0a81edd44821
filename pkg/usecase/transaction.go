package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/utils/errutil"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/secmon-lab/vulnapproval/pkg/usecase"

// RetryPolicy controls how transactions failing with ErrTransactionFailed or
// ErrStoreUnavailable are re-run. MaxAttempts includes the first attempt.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	bo.MaxElapsedTime = 0

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)
}

// txRunner runs one engine operation as a store transaction: it opens a span,
// retries transient failures from scratch and drops cached reads of the
// touched approval once the transaction has committed.
type txRunner struct {
	repo   interfaces.Repository
	cache  interfaces.ApprovalCache
	retry  RetryPolicy
	tracer trace.Tracer
}

func newTxRunner(repo interfaces.Repository, cache interfaces.ApprovalCache, retry RetryPolicy) *txRunner {
	return &txRunner{
		repo:   repo,
		cache:  cache,
		retry:  retry,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *txRunner) run(ctx context.Context, op string, approvalID model.ApprovalID, fn interfaces.TxFunc) error {
	ctx, span := r.tracer.Start(ctx, "approval."+op,
		trace.WithAttributes(attribute.String("approval.id", string(approvalID))))
	defer span.End()

	logger := logging.From(ctx).With("op", op, ApprovalIDKey, approvalID)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := r.repo.RunTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		if interfaces.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, r.retry.backOff(ctx), func(err error, wait time.Duration) {
		logger.Warn("retrying transaction", "attempt", attempt, "wait", wait, "error", err.Error())
	})
	span.SetAttributes(attribute.Int("approval.attempts", attempt))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return goerr.Wrap(err, "approval operation failed", goerr.V("op", op), goerr.V(ApprovalIDKey, approvalID))
	}

	if err := r.cache.Invalidate(ctx, approvalID); err != nil {
		// the write is committed; a stale entry expires on its own TTL
		_ = errutil.Handle(ctx, err, "failed to invalidate approval cache")
	}
	logger.Debug("transaction committed", "attempts", attempt)
	return nil
}
