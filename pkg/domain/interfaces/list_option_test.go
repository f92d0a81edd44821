package interfaces_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
)

func TestPage_Normalize(t *testing.T) {
	p := interfaces.Page{}.Normalize()
	gt.Number(t, p.Number).Equal(1)
	gt.Number(t, p.Size).Equal(10)
	gt.Number(t, p.Offset()).Equal(0)

	p = interfaces.Page{Number: 3, Size: 500}.Normalize()
	gt.Number(t, p.Size).Equal(interfaces.MaxPageSize)
	gt.Number(t, p.Offset()).Equal(200)
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	gt.Array(t, interfaces.Slice(items, interfaces.Page{Number: 1, Size: 2})).Equal([]int{1, 2})
	gt.Array(t, interfaces.Slice(items, interfaces.Page{Number: 3, Size: 2})).Equal([]int{5})
	gt.Array(t, interfaces.Slice(items, interfaces.Page{Number: 4, Size: 2})).Length(0)
}

func TestListVulnerabilityConfig_Match(t *testing.T) {
	v := &model.Vulnerability{
		ID:          "V-1",
		Name:        "Reflected XSS",
		Source:      "DAST",
		Description: "login form echoes input",
		RiskLevel:   types.RiskLevelHigh,
		Status:      types.VulnerabilityStatusPending,
		ApprovalID:  "APP-1",
	}

	tests := []struct {
		name string
		opts []interfaces.ListVulnerabilityOption
		want bool
	}{
		{"no filter", nil, true},
		{"search on name ignores case", []interfaces.ListVulnerabilityOption{interfaces.WithSearch("xss")}, true},
		{"search on description", []interfaces.ListVulnerabilityOption{interfaces.WithSearch("login")}, true},
		{"search miss", []interfaces.ListVulnerabilityOption{interfaces.WithSearch("csrf")}, false},
		{"risk level hit", []interfaces.ListVulnerabilityOption{interfaces.WithRiskLevel(types.RiskLevelHigh)}, true},
		{"risk level miss", []interfaces.ListVulnerabilityOption{interfaces.WithRiskLevel(types.RiskLevelLow)}, false},
		{"status miss", []interfaces.ListVulnerabilityOption{interfaces.WithVulnerabilityStatus(types.VulnerabilityStatusUnassigned)}, false},
		{"unassigned only excludes members", []interfaces.ListVulnerabilityOption{interfaces.WithUnassignedOnly()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := interfaces.BuildListVulnerabilityConfig(tt.opts...)
			gt.Value(t, cfg.Match(v)).Equal(tt.want)
		})
	}
}
