// Package handler exposes the scheduler over HTTP: a status probe, a
// trigger endpoint that executes a run synchronously, and the recent run
// history.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
	"github.com/rotaforge/scheduler/internal/engine"
	"github.com/rotaforge/scheduler/internal/http/response"
)

// Runner is the engine surface the handlers drive.
type Runner interface {
	Run(ctx context.Context, opts engine.RunOptions) (*domain.RunSummary, error)
	IsRunning() bool
	ActiveSession(ctx context.Context) (*domain.RunSession, error)
}

// RunLister reads run history.
type RunLister interface {
	ListRecentRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
}

// Server holds the handler dependencies.
type Server struct {
	runner  Runner
	runs    RunLister
	version string
	loc     *time.Location
	clock   func() time.Time
}

// NewServer creates the HTTP handler server. loc is the session time zone
// bare base_date values are interpreted in; nil means UTC.
func NewServer(runner Runner, runs RunLister, version string, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		runner:  runner,
		runs:    runs,
		version: version,
		loc:     loc,
		clock:   time.Now,
	}
}

type statusResponse struct {
	Status    string    `json:"status"`
	IsRunning bool      `json:"is_running"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Status reports service liveness and whether a run is active, locally or
// anywhere holding the session token. GET /scheduler/status,
// unauthenticated.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	running := s.runner.IsRunning()
	if !running {
		session, err := s.runner.ActiveSession(r.Context())
		if err != nil {
			response.InternalError(w, r, err)
			return
		}
		running = session != nil
	}

	response.OK(w, statusResponse{
		Status:    "healthy",
		IsRunning: running,
		Timestamp: s.clock().UTC(),
		Version:   s.version,
	})
}

type triggerRequest struct {
	CompanyID          int64  `json:"company_id"`
	TemplateID         int64  `json:"template_id"`
	AdvanceDays        int    `json:"advance_days"`
	MonthlyMonthsAhead int    `json:"monthly_months_ahead"`
	Reset              bool   `json:"reset"`
	BaseDate           string `json:"base_date"`
}

// TriggerRun executes a materialization run and returns its summary.
// POST /scheduler/run. The run inherits the request context, so a client
// disconnect cancels it; that outcome is reported as 499.
func (s *Server) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}
	}

	opts := engine.RunOptions{
		CompanyID:   req.CompanyID,
		TemplateID:  req.TemplateID,
		AdvanceDays: req.AdvanceDays,
		MonthsAhead: req.MonthlyMonthsAhead,
		Reset:       req.Reset,
	}
	if req.BaseDate != "" {
		// Midnight in the session zone, so the engine folds it onto the
		// same calendar day the caller named.
		base, err := time.ParseInLocation("2006-01-02", req.BaseDate, s.loc)
		if err != nil {
			response.ValidationError(w, "base_date", "must be YYYY-MM-DD")
			return
		}
		opts.BaseTime = base
	}

	summary, err := s.runner.Run(r.Context(), opts)
	switch {
	case err == nil:
		response.OK(w, summaryResponse(summary))
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		response.ClientClosedRequest(w)
	default:
		response.FromDomainError(w, r, err)
	}
}

// ListRuns returns recent run summaries, newest first.
// GET /scheduler/runs?limit=N, authenticated.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := parseLimit(raw)
		if err != nil {
			response.ValidationError(w, "limit", "must be an integer between 1 and 100")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRecentRuns(r.Context(), limit)
	if err != nil {
		response.InternalError(w, r, err)
		return
	}

	out := make([]runSummary, 0, len(runs))
	for i := range runs {
		out = append(out, summaryResponse(&runs[i]))
	}
	response.OK(w, listRunsResponse{Runs: out})
}
