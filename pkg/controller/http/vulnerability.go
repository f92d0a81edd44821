package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
)

func (s *Server) listVulnerabilities(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	opts := []interfaces.ListVulnerabilityOption{interfaces.WithVulnerabilityPage(page)}
	if search := q.Get("search"); search != "" {
		opts = append(opts, interfaces.WithSearch(search))
	}
	if raw := q.Get("riskLevel"); raw != "" {
		level, err := types.ParseRiskLevel(raw)
		if err != nil {
			writeError(w, r, goerr.Wrap(usecase.ErrInvalidArgument, err.Error()))
			return
		}
		opts = append(opts, interfaces.WithRiskLevel(level))
	}
	if raw := q.Get("status"); raw != "" {
		status, err := types.ParseVulnerabilityStatus(raw)
		if err != nil {
			writeError(w, r, goerr.Wrap(usecase.ErrInvalidArgument, err.Error()))
			return
		}
		opts = append(opts, interfaces.WithVulnerabilityStatus(status))
	}
	if raw := q.Get("unassigned"); raw != "" {
		unassigned, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, goerr.Wrap(usecase.ErrInvalidArgument, "invalid unassigned flag", goerr.V("value", raw)))
			return
		}
		if unassigned {
			opts = append(opts, interfaces.WithUnassignedOnly())
		}
	}

	vs, total, err := s.vulnerability.List(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, pageResponse[vulnerabilityResponse]{
		Items:    toVulnerabilityResponses(vs),
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
	})
}

func (s *Server) getVulnerability(w http.ResponseWriter, r *http.Request) {
	v, err := s.vulnerability.Get(r.Context(), model.VulnerabilityID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, toVulnerabilityResponse(v))
}

func (s *Server) registerVulnerability(w http.ResponseWriter, r *http.Request) {
	var req registerVulnerabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	discovered, err := parseTime("discoveryTime", req.DiscoveryTime)
	if err != nil {
		writeError(w, r, err)
		return
	}

	v, err := s.vulnerability.Register(r.Context(), usecase.RegisterVulnerabilityInput{
		ID:            model.VulnerabilityID(req.ID),
		Name:          req.Name,
		Source:        req.Source,
		ProjectNumber: req.ProjectNumber,
		RiskLevel:     types.RiskLevel(req.RiskLevel),
		Description:   req.Description,
		DiscoveredAt:  discovered,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, toVulnerabilityResponse(v))
}
