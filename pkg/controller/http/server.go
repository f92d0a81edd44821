package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/domain/model"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
)

// ApprovalUseCase is the approval surface the server depends on
type ApprovalUseCase interface {
	CreateWithMembers(ctx context.Context, in usecase.CreateApprovalInput) (*model.Approval, error)
	AssignBatch(ctx context.Context, approvalID model.ApprovalID, ids []model.VulnerabilityID, operator string) (*usecase.AssignResult, error)
	RemoveMember(ctx context.Context, approvalID model.ApprovalID, vulnID model.VulnerabilityID, operator string) (*usecase.RemoveResult, error)
	SubmitDecision(ctx context.Context, in usecase.SubmitDecisionInput) (*model.Approval, error)
	StartDisposal(ctx context.Context, approvalID model.ApprovalID, operator, comment string) (*model.Approval, error)
	SendForReview(ctx context.Context, approvalID model.ApprovalID, operator, conclusion string) (*model.Approval, error)

	Get(ctx context.Context, id model.ApprovalID) (*model.ApprovalDetail, error)
	List(ctx context.Context, opts ...interfaces.ListApprovalOption) ([]*model.Approval, int, error)
	History(ctx context.Context, id model.ApprovalID) ([]*model.AuditEntry, error)
	Members(ctx context.Context, id model.ApprovalID) ([]*model.Vulnerability, error)
}

// VulnerabilityUseCase is the vulnerability surface the server depends on
type VulnerabilityUseCase interface {
	Register(ctx context.Context, in usecase.RegisterVulnerabilityInput) (*model.Vulnerability, error)
	Get(ctx context.Context, id model.VulnerabilityID) (*model.Vulnerability, error)
	List(ctx context.Context, opts ...interfaces.ListVulnerabilityOption) ([]*model.Vulnerability, int, error)
}

type Server struct {
	router        *chi.Mux
	approval      ApprovalUseCase
	vulnerability VulnerabilityUseCase
	statusDisplay types.StatusDisplay
}

type Options func(*Server)

// WithStatusDisplay selects whether approval statuses are rendered as labels or numeric codes
func WithStatusDisplay(d types.StatusDisplay) Options {
	return func(s *Server) {
		s.statusDisplay = d
	}
}

func New(approval ApprovalUseCase, vulnerability VulnerabilityUseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:        r,
		approval:      approval,
		vulnerability: vulnerability,
		statusDisplay: types.StatusDisplayLabel,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/approvals", func(r chi.Router) {
		r.Post("/", s.createApproval)
		r.Get("/", s.listApprovals)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getApproval)
			r.Get("/history", s.approvalHistory)
			r.Get("/vulnerabilities", s.approvalMembers)
			r.Post("/assign", s.assignBatch)
			r.Post("/remove", s.removeMember)
			r.Post("/start", s.startDisposal)
			r.Post("/review", s.sendForReview)
			r.Post("/submit", s.submitDecision)
		})
	})

	r.Route("/api/vulnerabilities", func(r chi.Router) {
		r.Get("/", s.listVulnerabilities)
		r.Post("/", s.registerVulnerability)
		r.Get("/{id}", s.getVulnerability)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, r, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger binds a logger carrying the request ID to the request context
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.From(r.Context()).With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logging.With(r.Context(), logger)))
	})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
