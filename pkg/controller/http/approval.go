package http

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
)

func (s *Server) createApproval(w http.ResponseWriter, r *http.Request) {
	var req createApprovalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	due, err := parseTime("dueDate", req.DueDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a, err := s.approval.CreateWithMembers(r.Context(), usecase.CreateApprovalInput{
		Title:            req.Title,
		Priority:         types.Priority(req.Priority),
		Department:       req.Department,
		DueDate:          due,
		Comments:         req.Comments,
		CreatedBy:        req.CreatedBy,
		VulnerabilityIDs: toVulnerabilityIDs(req.VulnerabilityIDs),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, s.toApprovalResponse(a))
}

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts := []interfaces.ListApprovalOption{interfaces.WithApprovalPage(page)}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := parseApprovalStatus(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		opts = append(opts, interfaces.WithApprovalStatus(st))
	}

	approvals, total, err := s.approval.List(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]approvalResponse, len(approvals))
	for i, a := range approvals {
		items[i] = s.toApprovalResponse(a)
	}
	writeOK(w, r, pageResponse[approvalResponse]{
		Items:    items,
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
	})
}

func (s *Server) getApproval(w http.ResponseWriter, r *http.Request) {
	detail, err := s.approval.Get(r.Context(), approvalIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, approvalDetailResponse{
		Approval:        s.toApprovalResponse(detail.Approval),
		Vulnerabilities: toVulnerabilityResponses(detail.Members),
		History:         toAuditEntryResponses(detail.AuditTrail),
	})
}

func (s *Server) approvalHistory(w http.ResponseWriter, r *http.Request) {
	trail, err := s.approval.History(r.Context(), approvalIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, toAuditEntryResponses(trail))
}

func (s *Server) approvalMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.approval.Members(r.Context(), approvalIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, toVulnerabilityResponses(members))
}

func (s *Server) assignBatch(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.approval.AssignBatch(r.Context(), approvalIDParam(r), toVulnerabilityIDs(req.VulnerabilityIDs), req.Operator)
	if err != nil {
		writeError(w, r, err)
		return
	}

	added := make([]string, len(res.Added))
	for i, id := range res.Added {
		added[i] = string(id)
	}
	writeOK(w, r, map[string]any{
		"approval": s.toApprovalResponse(res.Approval),
		"added":    added,
	})
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.approval.RemoveMember(r.Context(), approvalIDParam(r), model.VulnerabilityID(req.VulnerabilityID), req.Operator)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, map[string]any{
		"remainingCount": res.RemainingCount,
		"approvalClosed": res.ApprovalClosed,
		"approval":       s.toApprovalResponse(res.Approval),
	})
}

func (s *Server) startDisposal(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := s.approval.StartDisposal(r.Context(), approvalIDParam(r), req.Operator, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, s.toApprovalResponse(a))
}

func (s *Server) sendForReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := s.approval.SendForReview(r.Context(), approvalIDParam(r), req.Operator, req.Conclusion)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, s.toApprovalResponse(a))
}

func (s *Server) submitDecision(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	decision, err := types.ParseDecision(req.Decision)
	if err != nil {
		writeError(w, r, goerr.Wrap(usecase.ErrInvalidArgument, err.Error()))
		return
	}

	a, err := s.approval.SubmitDecision(r.Context(), usecase.SubmitDecisionInput{
		ApprovalID: approvalIDParam(r),
		Decision:   decision,
		Operator:   req.Operator,
		Comment:    req.Comment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, s.toApprovalResponse(a))
}
