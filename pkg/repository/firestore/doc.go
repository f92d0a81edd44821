package firestore

import (
	"time"

	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

// vulnerabilityDoc is the Firestore document representation of model.Vulnerability.
type vulnerabilityDoc struct {
	ID            string    `firestore:"ID"`
	Name          string    `firestore:"Name"`
	Source        string    `firestore:"Source"`
	ProjectNumber string    `firestore:"ProjectNumber"`
	RiskLevel     string    `firestore:"RiskLevel"`
	Status        string    `firestore:"Status"`
	ApprovalID    string    `firestore:"ApprovalID"`
	Description   string    `firestore:"Description"`
	DiscoveredAt  time.Time `firestore:"DiscoveredAt"`
	CreatedAt     time.Time `firestore:"CreatedAt"`
	UpdatedAt     time.Time `firestore:"UpdatedAt"`
}

func toVulnerabilityDoc(v *model.Vulnerability) *vulnerabilityDoc {
	return &vulnerabilityDoc{
		ID:            string(v.ID),
		Name:          v.Name,
		Source:        v.Source,
		ProjectNumber: v.ProjectNumber,
		RiskLevel:     string(v.RiskLevel),
		Status:        string(v.Status),
		ApprovalID:    string(v.ApprovalID),
		Description:   v.Description,
		DiscoveredAt:  v.DiscoveredAt,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func fromVulnerabilityDoc(d *vulnerabilityDoc) *model.Vulnerability {
	return &model.Vulnerability{
		ID:            model.VulnerabilityID(d.ID),
		Name:          d.Name,
		Source:        d.Source,
		ProjectNumber: d.ProjectNumber,
		RiskLevel:     types.RiskLevel(d.RiskLevel),
		Status:        types.VulnerabilityStatus(d.Status),
		ApprovalID:    model.ApprovalID(d.ApprovalID),
		Description:   d.Description,
		DiscoveredAt:  d.DiscoveredAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// approvalDoc is the Firestore document representation of model.Approval.
type approvalDoc struct {
	ID         string    `firestore:"ID"`
	Title      string    `firestore:"Title"`
	Priority   string    `firestore:"Priority"`
	Department string    `firestore:"Department"`
	DueDate    time.Time `firestore:"DueDate"`
	Comments   string    `firestore:"Comments"`
	CreatedBy  string    `firestore:"CreatedBy"`
	Approver   string    `firestore:"Approver"`
	Partition  string    `firestore:"Partition"`
	MemberIDs  []string  `firestore:"MemberIDs"`
	Status     string    `firestore:"Status"`
	Conclusion string    `firestore:"Conclusion"`
	AuditSeq   int64     `firestore:"AuditSeq"`
	CreatedAt  time.Time `firestore:"CreatedAt"`
	UpdatedAt  time.Time `firestore:"UpdatedAt"`
}

func toApprovalDoc(a *model.Approval) *approvalDoc {
	memberIDs := make([]string, len(a.MemberIDs))
	for i, id := range a.MemberIDs {
		memberIDs[i] = string(id)
	}

	return &approvalDoc{
		ID:         string(a.ID),
		Title:      a.Title,
		Priority:   string(a.Priority),
		Department: a.Department,
		DueDate:    a.DueDate,
		Comments:   a.Comments,
		CreatedBy:  a.CreatedBy,
		Approver:   a.Approver,
		Partition:  a.Partition,
		MemberIDs:  memberIDs,
		Status:     string(a.Status),
		Conclusion: string(a.Conclusion),
		AuditSeq:   a.AuditSeq,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func fromApprovalDoc(d *approvalDoc) *model.Approval {
	memberIDs := make([]model.VulnerabilityID, len(d.MemberIDs))
	for i, id := range d.MemberIDs {
		memberIDs[i] = model.VulnerabilityID(id)
	}

	return &model.Approval{
		ID:         model.ApprovalID(d.ID),
		Title:      d.Title,
		Priority:   types.Priority(d.Priority),
		Department: d.Department,
		DueDate:    d.DueDate,
		Comments:   d.Comments,
		CreatedBy:  d.CreatedBy,
		Approver:   d.Approver,
		Partition:  d.Partition,
		MemberIDs:  memberIDs,
		Status:     types.ApprovalStatus(d.Status),
		Conclusion: types.Decision(d.Conclusion),
		AuditSeq:   d.AuditSeq,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// auditEntryDoc is the Firestore document representation of model.AuditEntry.
type auditEntryDoc struct {
	ID         string    `firestore:"ID"`
	ApprovalID string    `firestore:"ApprovalID"`
	Seq        int64     `firestore:"Seq"`
	Step       string    `firestore:"Step"`
	Operator   string    `firestore:"Operator"`
	Result     string    `firestore:"Result"`
	Time       time.Time `firestore:"Time"`
	Comments   string    `firestore:"Comments"`
}

func toAuditEntryDoc(e *model.AuditEntry) *auditEntryDoc {
	return &auditEntryDoc{
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

func fromAuditEntryDoc(d *auditEntryDoc) *model.AuditEntry {
	return &model.AuditEntry{
		ID:         model.AuditEntryID(d.ID),
		ApprovalID: model.ApprovalID(d.ApprovalID),
		Seq:        d.Seq,
		Step:       types.AuditStep(d.Step),
		Operator:   d.Operator,
		Result:     d.Result,
		Time:       d.Time,
		Comments:   d.Comments,
	}
}
