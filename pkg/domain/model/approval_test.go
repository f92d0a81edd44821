package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

func TestApproval_Members(t *testing.T) {
	a := &model.Approval{ID: model.NewApprovalID()}

	a.AddMembers("V-1", "V-2", "V-1")
	gt.Array(t, a.MemberIDs).Length(2)
	gt.B(t, a.HasMember("V-2")).True()

	snapshot := a.Clone()

	gt.B(t, a.RemoveMember("V-1")).True()
	gt.B(t, a.RemoveMember("V-1")).False()
	gt.Array(t, a.MemberIDs).Length(1)
	gt.Value(t, a.MemberIDs[0]).Equal(model.VulnerabilityID("V-2"))

	// clone is not affected by later mutation
	gt.Array(t, snapshot.MemberIDs).Length(2)
	gt.Value(t, snapshot.MemberIDs[0]).Equal(model.VulnerabilityID("V-1"))
}

func TestApproval_AppendComment(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	a := &model.Approval{}

	a.AppendComment(at, "first")
	gt.Value(t, a.Comments).Equal("[2024-05-01 09:30:00] first")

	a.AppendComment(at.Add(time.Minute), "second")
	lines := strings.Split(a.Comments, "\n")
	gt.Array(t, lines).Length(2)
	gt.Value(t, lines[1]).Equal("[2024-05-01 09:31:00] second")
}

func TestNewApprovalID(t *testing.T) {
	id1 := model.NewApprovalID()
	id2 := model.NewApprovalID()
	gt.Value(t, id1).NotEqual(id2)
	gt.B(t, strings.HasPrefix(id1.String(), "APP-")).True()
}

func TestVulnerability_PartitionValue(t *testing.T) {
	v := &model.Vulnerability{Source: "SCA", ProjectNumber: "PRJ-7"}
	gt.Value(t, v.PartitionValue(types.PartitionKeySource)).Equal("SCA")
	gt.Value(t, v.PartitionValue(types.PartitionKeyProjectNumber)).Equal("PRJ-7")
}

func TestVulnerability_Validate(t *testing.T) {
	valid := &model.Vulnerability{
		ID:        "V-1",
		Name:      "SQL injection",
		Source:    "DAST",
		RiskLevel: types.RiskLevelHigh,
	}
	gt.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(v *model.Vulnerability)
	}{
		{"missing id", func(v *model.Vulnerability) { v.ID = "" }},
		{"missing name", func(v *model.Vulnerability) { v.Name = "" }},
		{"missing source", func(v *model.Vulnerability) { v.Source = "" }},
		{"unknown risk level", func(v *model.Vulnerability) { v.RiskLevel = "severe" }},
		{"unknown status", func(v *model.Vulnerability) { v.Status = "done" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := valid.Clone()
			tt.mutate(v)
			gt.Error(t, v.Validate()).Is(model.ErrInvalidRecord)
		})
	}
}

func TestSortAuditEntries(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	entries := []*model.AuditEntry{
		{Seq: 3, Time: base.Add(time.Second)},
		{Seq: 2, Time: base},
		{Seq: 1, Time: base},
	}
	model.SortAuditEntries(entries)

	gt.Number(t, entries[0].Seq).Equal(1)
	gt.Number(t, entries[1].Seq).Equal(2)
	gt.Number(t, entries[2].Seq).Equal(3)
}
