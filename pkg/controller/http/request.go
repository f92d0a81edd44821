package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
)

type createApprovalRequest struct {
	Title            string   `json:"title"`
	Priority         string   `json:"priority"`
	Department       string   `json:"department"`
	DueDate          string   `json:"dueDate"`
	Comments         string   `json:"comments"`
	CreatedBy        string   `json:"createdBy"`
	VulnerabilityIDs []string `json:"vulnerabilityIds"`
}

type assignRequest struct {
	VulnerabilityIDs []string `json:"vulnerabilityIds"`
	Operator         string   `json:"operator"`
}

type removeRequest struct {
	VulnerabilityID string `json:"vulnerabilityId"`
	Operator        string `json:"operator"`
}

type startRequest struct {
	Operator string `json:"operator"`
	Comment  string `json:"comment"`
}

type reviewRequest struct {
	Operator   string `json:"operator"`
	Conclusion string `json:"conclusion"`
}

type submitRequest struct {
	Decision string `json:"decision"`
	Operator string `json:"operator"`
	Comment  string `json:"comment"`
}

type registerVulnerabilityRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Source        string `json:"source"`
	ProjectNumber string `json:"projectNumber"`
	RiskLevel     string `json:"riskLevel"`
	Description   string `json:"description"`
	DiscoveryTime string `json:"discoveryTime"`
}

func toVulnerabilityIDs(ids []string) []model.VulnerabilityID {
	out := make([]model.VulnerabilityID, len(ids))
	for i, id := range ids {
		out[i] = model.VulnerabilityID(id)
	}
	return out
}

// parseTime accepts RFC 3339 timestamps and plain dates. Empty means zero time.
func parseTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, goerr.Wrap(usecase.ErrInvalidArgument, "invalid time",
			goerr.V("field", field), goerr.V("value", s))
	}
	return t, nil
}

func parseInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, goerr.Wrap(usecase.ErrInvalidArgument, "invalid integer parameter",
			goerr.V("param", name), goerr.V("value", raw))
	}
	return n, nil
}

func parsePage(r *http.Request) (interfaces.Page, error) {
	number, err := parseInt(r, "page")
	if err != nil {
		return interfaces.Page{}, err
	}
	size, err := parseInt(r, "pageSize")
	if err != nil {
		return interfaces.Page{}, err
	}
	return interfaces.Page{Number: number, Size: size}.Normalize(), nil
}

// parseApprovalStatus accepts both display conventions, label and numeric code
func parseApprovalStatus(raw string) (types.ApprovalStatus, error) {
	if code, err := strconv.Atoi(raw); err == nil {
		st, err := types.ApprovalStatusFromCode(code)
		if err != nil {
			return "", goerr.Wrap(usecase.ErrInvalidArgument, err.Error())
		}
		return st, nil
	}
	st, err := types.ParseApprovalStatus(raw)
	if err != nil {
		return "", goerr.Wrap(usecase.ErrInvalidArgument, err.Error())
	}
	return st, nil
}

func approvalIDParam(r *http.Request) model.ApprovalID {
	return model.ApprovalID(chi.URLParam(r, "id"))
}
