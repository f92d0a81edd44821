package cli

import (
	"bytes"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
)

func TestPrintDiscrepancies(t *testing.T) {
	var buf bytes.Buffer
	gt.NoError(t, printDiscrepancies(&buf, []usecase.Discrepancy{
		{Kind: usecase.DiscrepancyMissingBackLink, ApprovalID: "APP-1", VulnerabilityID: "V1"},
		{Kind: usecase.DiscrepancyOpenWithoutMember, ApprovalID: "APP-2"},
	}))
	gt.Value(t, buf.String()).Equal("missing_back_link\tAPP-1\tV1\nopen_without_member\tAPP-2\t-\n")
}
