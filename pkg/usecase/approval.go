package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

// ApprovalUseCase is the association engine. It is the only writer of
// Vulnerability.ApprovalID, Approval.MemberIDs and Approval.Status.
type ApprovalUseCase struct {
	repo          interfaces.Repository
	cache         interfaces.ApprovalCache
	tx            *txRunner
	audit         *auditWriter
	partitionKey  types.PartitionKey
	autoCloseNote string
}

// CreateApprovalInput is the metadata and initial member set of a new approval
type CreateApprovalInput struct {
	Title            string
	Priority         types.Priority
	Department       string
	DueDate          time.Time
	Comments         string
	CreatedBy        string
	VulnerabilityIDs []model.VulnerabilityID
}

// AssignResult is returned by AssignBatch
type AssignResult struct {
	Approval *model.Approval
	Added    []model.VulnerabilityID
}

// RemoveResult is returned by RemoveMember
type RemoveResult struct {
	Approval       *model.Approval
	RemainingCount int
	ApprovalClosed bool
}

// SubmitDecisionInput carries a decision on an approval
type SubmitDecisionInput struct {
	ApprovalID model.ApprovalID
	Decision   types.Decision
	Operator   string
	Comment    string
}

// validateCandidates rejects empty and duplicated candidate lists before any store access
func validateCandidates(ids []model.VulnerabilityID) error {
	if len(ids) == 0 {
		return goerr.Wrap(ErrInvalidArgument, "at least one vulnerability is required")
	}

	seen := make(map[model.VulnerabilityID]struct{}, len(ids))
	var dup []model.VulnerabilityID
	for _, id := range ids {
		if id == "" {
			return goerr.Wrap(ErrInvalidArgument, "empty vulnerability ID")
		}
		if _, ok := seen[id]; ok {
			dup = append(dup, id)
			continue
		}
		seen[id] = struct{}{}
	}
	if len(dup) > 0 {
		return goerr.Wrap(ErrInvalidArgument, "duplicate vulnerability IDs",
			goerr.V(VulnerabilityIDsKey, dup))
	}
	return nil
}

// checkCandidates verifies locked candidates are free and share one partition.
// want is the partition the candidates must match; empty means any common value.
// It returns the common partition value.
func (uc *ApprovalUseCase) checkCandidates(vs []*model.Vulnerability, want string) (string, error) {
	var assigned []model.VulnerabilityID
	for _, v := range vs {
		if v.Assigned() {
			assigned = append(assigned, v.ID)
		}
	}
	if len(assigned) > 0 {
		return "", goerr.Wrap(ErrAlreadyAssigned, "vulnerabilities already belong to an approval",
			goerr.V(VulnerabilityIDsKey, assigned))
	}

	partition := want
	if partition == "" {
		partition = vs[0].PartitionValue(uc.partitionKey)
	}
	var mixed []model.VulnerabilityID
	for _, v := range vs {
		if v.PartitionValue(uc.partitionKey) != partition {
			mixed = append(mixed, v.ID)
		}
	}
	if len(mixed) > 0 {
		return "", goerr.Wrap(ErrMixedSource, "vulnerabilities do not share one partition",
			goerr.V(VulnerabilityIDsKey, mixed),
			goerr.V(PartitionKey, partition),
			goerr.V("partition_key", uc.partitionKey))
	}
	return partition, nil
}

func (uc *ApprovalUseCase) lockCandidates(ctx context.Context, tx interfaces.Transaction, ids []model.VulnerabilityID) ([]*model.Vulnerability, error) {
	vs, err := tx.LockVulnerabilities(ctx, ids)
	if err != nil {
		return nil, translateNotFound(err, ErrVulnerabilityNotFound, "vulnerability not found")
	}
	return vs, nil
}

func (uc *ApprovalUseCase) lockApproval(ctx context.Context, tx interfaces.Transaction, id model.ApprovalID) (*model.Approval, error) {
	a, err := tx.LockApproval(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, ErrApprovalNotFound, "approval not found")
	}
	return a, nil
}

// setMemberStatus writes the display status of every member of a
func setMemberStatus(ctx context.Context, tx interfaces.Transaction, vs []*model.Vulnerability, status types.VulnerabilityStatus, at time.Time) error {
	for _, v := range vs {
		v.Status = status
		v.UpdatedAt = at
		if err := tx.PutVulnerability(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func joinIDs(ids []model.VulnerabilityID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ", ")
}

// CreateWithMembers creates an approval whose member set is exactly in.VulnerabilityIDs.
func (uc *ApprovalUseCase) CreateWithMembers(ctx context.Context, in CreateApprovalInput) (*model.Approval, error) {
	if err := validateCandidates(in.VulnerabilityIDs); err != nil {
		return nil, err
	}
	priority, err := types.ParsePriority(string(in.Priority))
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidArgument, err.Error())
	}

	// allocated outside the transaction so retries reuse the same ID
	id := model.NewApprovalID()

	var created *model.Approval
	err = uc.tx.run(ctx, "create", id, func(ctx context.Context, tx interfaces.Transaction) error {
		vs, err := uc.lockCandidates(ctx, tx, in.VulnerabilityIDs)
		if err != nil {
			return err
		}
		partition, err := uc.checkCandidates(vs, "")
		if err != nil {
			return err
		}

		a := &model.Approval{
			ID:         id,
			Title:      in.Title,
			Priority:   priority,
			Department: in.Department,
			DueDate:    in.DueDate,
			Comments:   in.Comments,
			CreatedBy:  in.CreatedBy,
			Partition:  partition,
			MemberIDs:  slices.Clone(in.VulnerabilityIDs),
			Status:     types.ApprovalStatusCreated,
		}
		now := uc.audit.now(a)
		a.CreatedAt = now

		for _, v := range vs {
			v.ApprovalID = id
		}
		if err := setMemberStatus(ctx, tx, vs, types.VulnerabilityStatusPending, now); err != nil {
			return err
		}

		if err := uc.audit.append(ctx, tx, a, now, auditRecord{
			step:     types.AuditStepSubmit,
			operator: in.CreatedBy,
			result:   fmt.Sprintf("approval created with %d vulnerabilities: %s", len(vs), joinIDs(a.MemberIDs)),
			comments: in.Comments,
		}); err != nil {
			return err
		}
		if err := tx.PutApproval(ctx, a); err != nil {
			return err
		}

		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AssignBatch adds every candidate to an open approval or none of them.
func (uc *ApprovalUseCase) AssignBatch(ctx context.Context, approvalID model.ApprovalID, ids []model.VulnerabilityID, operator string) (*AssignResult, error) {
	if err := validateCandidates(ids); err != nil {
		return nil, err
	}

	var result *AssignResult
	err := uc.tx.run(ctx, "assign", approvalID, func(ctx context.Context, tx interfaces.Transaction) error {
		a, err := uc.lockApproval(ctx, tx, approvalID)
		if err != nil {
			return err
		}
		next, err := a.Status.Next(types.EventMembersChanged)
		if err != nil {
			return translateStatusError(err)
		}

		vs, err := uc.lockCandidates(ctx, tx, ids)
		if err != nil {
			return err
		}
		partition, err := uc.checkCandidates(vs, a.Partition)
		if err != nil {
			return err
		}

		now := uc.audit.now(a)
		a.Partition = partition
		a.AddMembers(ids...)
		a.Status = next

		for _, v := range vs {
			v.ApprovalID = approvalID
		}
		if err := setMemberStatus(ctx, tx, vs, types.VulnerabilityStatusPending, now); err != nil {
			return err
		}

		if err := uc.audit.append(ctx, tx, a, now, auditRecord{
			step:     types.AuditStepAssign,
			operator: operator,
			result:   fmt.Sprintf("assigned %d vulnerabilities: %s", len(ids), joinIDs(ids)),
		}); err != nil {
			return err
		}
		if err := tx.PutApproval(ctx, a); err != nil {
			return err
		}

		result = &AssignResult{Approval: a, Added: slices.Clone(ids)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveMember unlinks one vulnerability. Removing the last member of an open
// approval closes it. Members of a closed approval can be released so they are
// free for another approval; the closed approval keeps its status.
func (uc *ApprovalUseCase) RemoveMember(ctx context.Context, approvalID model.ApprovalID, vulnID model.VulnerabilityID, operator string) (*RemoveResult, error) {
	if vulnID == "" {
		return nil, goerr.Wrap(ErrInvalidArgument, "vulnerability ID is required")
	}

	var result *RemoveResult
	err := uc.tx.run(ctx, "remove", approvalID, func(ctx context.Context, tx interfaces.Transaction) error {
		a, err := uc.lockApproval(ctx, tx, approvalID)
		if err != nil {
			return err
		}
		vs, err := uc.lockCandidates(ctx, tx, []model.VulnerabilityID{vulnID})
		if err != nil {
			return err
		}
		v := vs[0]
		if v.ApprovalID != approvalID || !a.HasMember(vulnID) {
			return goerr.Wrap(ErrNotAMember, "vulnerability is not linked to the approval",
				goerr.V(ApprovalIDKey, approvalID),
				goerr.V(VulnerabilityIDKey, vulnID),
				goerr.V("linked_approval_id", v.ApprovalID))
		}

		now := uc.audit.now(a)
		v.ApprovalID = ""
		v.Status = types.VulnerabilityStatusUnassigned
		v.UpdatedAt = now
		if err := tx.PutVulnerability(ctx, v); err != nil {
			return err
		}

		a.RemoveMember(vulnID)
		remaining := len(a.MemberIDs)
		resultText := fmt.Sprintf("removed %s, %d remaining", vulnID, remaining)

		// a closed approval stays closed; only the link is released
		closed := false
		if remaining == 0 && !a.Status.IsTerminal() {
			next, err := a.Status.Next(types.EventMembersEmptied)
			if err != nil {
				return translateStatusError(err)
			}
			a.Status = next
			a.AppendComment(now, uc.autoCloseNote)
			resultText += ", approval closed automatically"
			closed = true
		}

		if err := uc.audit.append(ctx, tx, a, now, auditRecord{
			step:     types.AuditStepRemoveMember,
			operator: operator,
			result:   resultText,
		}); err != nil {
			return err
		}
		if err := tx.PutApproval(ctx, a); err != nil {
			return err
		}

		result = &RemoveResult{Approval: a, RemainingCount: remaining, ApprovalClosed: closed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitDecision records a decision. Approved closes the approval; rejected and
// returned send it back to processing.
func (uc *ApprovalUseCase) SubmitDecision(ctx context.Context, in SubmitDecisionInput) (*model.Approval, error) {
	if !in.Decision.IsValid() {
		return nil, goerr.Wrap(ErrInvalidArgument, "invalid decision", goerr.V("decision", in.Decision))
	}

	var updated *model.Approval
	err := uc.tx.run(ctx, "submit", in.ApprovalID, func(ctx context.Context, tx interfaces.Transaction) error {
		a, err := uc.lockApproval(ctx, tx, in.ApprovalID)
		if err != nil {
			return err
		}
		next, err := a.Status.Next(in.Decision.Event())
		if err != nil {
			return translateStatusError(err)
		}

		members, err := uc.lockCandidates(ctx, tx, a.MemberIDs)
		if err != nil {
			return err
		}

		now := uc.audit.now(a)
		a.Status = next
		a.Conclusion = in.Decision
		a.Approver = in.Operator
		if in.Comment != "" {
			a.AppendComment(now, in.Comment)
		}

		if err := setMemberStatus(ctx, tx, members, in.Decision.MemberStatus(), now); err != nil {
			return err
		}

		if err := uc.audit.append(ctx, tx, a, now, auditRecord{
			step:     types.AuditStepFinalDecision,
			operator: in.Operator,
			result:   string(in.Decision),
			comments: in.Comment,
		}); err != nil {
			return err
		}
		if err := tx.PutApproval(ctx, a); err != nil {
			return err
		}

		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// StartDisposal moves a created approval to processing.
func (uc *ApprovalUseCase) StartDisposal(ctx context.Context, approvalID model.ApprovalID, operator, comment string) (*model.Approval, error) {
	return uc.advance(ctx, "start", approvalID, types.EventStartDisposal, types.VulnerabilityStatusProcessing, auditRecord{
		step:     types.AuditStepStartDisposal,
		operator: operator,
		result:   "disposal started",
		comments: comment,
	})
}

// SendForReview stages a conclusion and moves a processing approval to approving.
func (uc *ApprovalUseCase) SendForReview(ctx context.Context, approvalID model.ApprovalID, operator, conclusion string) (*model.Approval, error) {
	return uc.advance(ctx, "review", approvalID, types.EventSendForReview, "", auditRecord{
		step:     types.AuditStepSendForReview,
		operator: operator,
		result:   "sent for review",
		comments: conclusion,
	})
}

// advance applies a member-independent transition. memberStatus, when set,
// becomes the display status of every member.
func (uc *ApprovalUseCase) advance(ctx context.Context, op string, approvalID model.ApprovalID, ev types.ApprovalEvent, memberStatus types.VulnerabilityStatus, rec auditRecord) (*model.Approval, error) {
	var updated *model.Approval
	err := uc.tx.run(ctx, op, approvalID, func(ctx context.Context, tx interfaces.Transaction) error {
		a, err := uc.lockApproval(ctx, tx, approvalID)
		if err != nil {
			return err
		}
		next, err := a.Status.Next(ev)
		if err != nil {
			return translateStatusError(err)
		}

		now := uc.audit.now(a)
		a.Status = next

		if memberStatus != "" {
			members, err := uc.lockCandidates(ctx, tx, a.MemberIDs)
			if err != nil {
				return err
			}
			if err := setMemberStatus(ctx, tx, members, memberStatus, now); err != nil {
				return err
			}
		}

		if err := uc.audit.append(ctx, tx, a, now, rec); err != nil {
			return err
		}
		if err := tx.PutApproval(ctx, a); err != nil {
			return err
		}

		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
