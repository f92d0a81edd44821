package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

// auditWriter appends audit entries inside the caller's transaction. It is
// the only place that advances Approval.AuditSeq and Approval.UpdatedAt.
type auditWriter struct {
	clock func() time.Time
}

func newAuditWriter(clock func() time.Time) *auditWriter {
	return &auditWriter{clock: clock}
}

// now returns the timestamp for the next change of a. It never goes behind
// the previous change so audit times stay monotonic even if the clock steps back.
func (w *auditWriter) now(a *model.Approval) time.Time {
	now := w.clock().UTC()
	if now.Before(a.UpdatedAt) {
		return a.UpdatedAt
	}
	return now
}

type auditRecord struct {
	step     types.AuditStep
	operator string
	result   string
	comments string
}

// append stamps a with the next sequence number and time at, then writes one entry.
// The caller still has to persist a.
func (w *auditWriter) append(ctx context.Context, tx interfaces.Transaction, a *model.Approval, at time.Time, rec auditRecord) error {
	a.AuditSeq++
	a.UpdatedAt = at

	entry := &model.AuditEntry{
		ID:         model.NewAuditEntryID(),
		ApprovalID: a.ID,
		Seq:        a.AuditSeq,
		Step:       rec.step,
		Operator:   rec.operator,
		Result:     rec.result,
		Time:       at,
		Comments:   rec.comments,
	}
	if err := tx.AppendAuditEntry(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to append audit entry",
			goerr.V(ApprovalIDKey, a.ID),
			goerr.V("step", rec.step))
	}
	return nil
}
