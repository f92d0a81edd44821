package http

import (
	"time"

	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

type vulnerabilityResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Source        string     `json:"source"`
	ProjectNumber string     `json:"projectNumber,omitempty"`
	RiskLevel     string     `json:"riskLevel"`
	Status        string     `json:"status"`
	ApprovalID    string     `json:"approvalId,omitempty"`
	Description   string     `json:"description,omitempty"`
	DiscoveredAt  *time.Time `json:"discoveryTime,omitempty"`
	CreatedAt     time.Time  `json:"createTime"`
	UpdatedAt     time.Time  `json:"updateTime"`
}

type approvalResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Priority    string     `json:"priority"`
	Department  string     `json:"department,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Comments    string     `json:"comments,omitempty"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	Approver    string     `json:"approver,omitempty"`
	Partition   string     `json:"partition"`
	MemberIDs   []string   `json:"vulnerabilityIds"`
	MemberCount int        `json:"vulnerabilityCount"`
	Status      any        `json:"status"`
	Conclusion  string     `json:"conclusion,omitempty"`
	CreatedAt   time.Time  `json:"createTime"`
	UpdatedAt   time.Time  `json:"updateTime"`
}

type auditEntryResponse struct {
	ID         string    `json:"id"`
	ApprovalID string    `json:"approvalId"`
	Seq        int64     `json:"seq"`
	Step       string    `json:"step"`
	Operator   string    `json:"operator"`
	Result     string    `json:"operation"`
	Time       time.Time `json:"time"`
	Comments   string    `json:"comments,omitempty"`
}

type approvalDetailResponse struct {
	Approval        approvalResponse        `json:"approval"`
	Vulnerabilities []vulnerabilityResponse `json:"vulnerabilities"`
	History         []auditEntryResponse    `json:"history"`
}

type pageResponse[T any] struct {
	Items    []T `json:"list"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Server) renderStatus(st types.ApprovalStatus) any {
	if s.statusDisplay == types.StatusDisplayCode {
		return st.Code()
	}
	return st.String()
}

func toVulnerabilityResponse(v *model.Vulnerability) vulnerabilityResponse {
	return vulnerabilityResponse{
		ID:            string(v.ID),
		Name:          v.Name,
		Source:        v.Source,
		ProjectNumber: v.ProjectNumber,
		RiskLevel:     string(v.RiskLevel),
		Status:        string(v.Status),
		ApprovalID:    string(v.ApprovalID),
		Description:   v.Description,
		DiscoveredAt:  optionalTime(v.DiscoveredAt),
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func toVulnerabilityResponses(vs []*model.Vulnerability) []vulnerabilityResponse {
	out := make([]vulnerabilityResponse, len(vs))
	for i, v := range vs {
		out[i] = toVulnerabilityResponse(v)
	}
	return out
}

func (s *Server) toApprovalResponse(a *model.Approval) approvalResponse {
	members := make([]string, len(a.MemberIDs))
	for i, id := range a.MemberIDs {
		members[i] = string(id)
	}
	return approvalResponse{
		ID:          string(a.ID),
		Title:       a.Title,
		Priority:    string(a.Priority),
		Department:  a.Department,
		DueDate:     optionalTime(a.DueDate),
		Comments:    a.Comments,
		CreatedBy:   a.CreatedBy,
		Approver:    a.Approver,
		Partition:   a.Partition,
		MemberIDs:   members,
		MemberCount: len(members),
		Status:      s.renderStatus(a.Status),
		Conclusion:  string(a.Conclusion),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toAuditEntryResponses(entries []*model.AuditEntry) []auditEntryResponse {
	out := make([]auditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = auditEntryResponse{
			ID:         string(e.ID),
			ApprovalID: string(e.ApprovalID),
			Seq:        e.Seq,
			Step:       string(e.Step),
			Operator:   e.Operator,
			Result:     e.Result,
			Time:       e.Time,
			Comments:   e.Comments,
		}
	}
	return out
}
