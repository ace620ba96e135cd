// Package web serves the review pipeline over HTTP.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/metalagman/refiner/internal/db"
	"github.com/metalagman/refiner/internal/report"
	"github.com/metalagman/refiner/internal/review"
	"github.com/metalagman/refiner/internal/source"
	"github.com/rs/zerolog/log"
)

// Reviewer runs one review.
type Reviewer interface {
	Run(ctx context.Context, req review.Request) (report.Report, error)
}

// RunStore reads recorded runs.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (db.RunRecord, error)
	ListRuns(ctx context.Context, projectID string, limit int) ([]db.RunRecord, error)
}

// Server provides the HTTP handlers.
type Server struct {
	reviewer Reviewer
	runs     RunStore
	index    *template.Template
}

//go:embed templates/*.html
var templatesFS embed.FS

// NewServer creates a new web server.
func NewServer(reviewer Reviewer, runs RunStore) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Server{reviewer: reviewer, runs: runs, index: tmpl}, nil
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /projects/{id}/reviews", s.handleReview)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	return mux
}

type reviewBody struct {
	Profile     string                `json:"profile,omitempty"`
	Agents      review.AgentOverrides `json:"agents"`
	Temperature *float64              `json:"temperature,omitempty"`
	MaxTokens   *int                  `json:"maxTokens,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

type runBody struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"projectId"`
	Status     string          `json:"status"`
	StartedAt  string          `json:"startedAt"`
	FinishedAt string          `json:"finishedAt,omitempty"`
	Summary    string          `json:"summary,omitempty"`
	Error      string          `json:"error,omitempty"`
	Report     json.RawMessage `json:"report,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	rep, err := s.reviewer.Run(r.Context(), review.Request{
		ProjectID:   r.PathValue("id"),
		Profile:     body.Profile,
		Agents:      body.Agents,
		Temperature: body.Temperature,
		MaxTokens:   body.MaxTokens,
	})
	if err != nil {
		status, resp := errorResponse(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("project_id", r.PathValue("id")).Int("status", status).Msg("review request failed")
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func errorResponse(err error) (int, errorBody) {
	var perr *review.PlanningError
	switch {
	case errors.As(err, &perr):
		return http.StatusBadGateway, errorBody{Error: err.Error(), Stage: perr.Stage}
	case errors.Is(err, review.ErrInvalidRequest):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, source.ErrProjectNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: err.Error()}
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toRunBody(rec, true))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	recs, err := s.runs.ListRuns(r.Context(), r.URL.Query().Get("project"), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	out := make([]runBody, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRunBody(rec, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	recs, err := s.runs.ListRuns(r.Context(), "", 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, recs); err != nil {
		log.Warn().Err(err).Msg("render index")
	}
}

func toRunBody(rec db.RunRecord, withReport bool) runBody {
	out := runBody{
		ID:        rec.ID,
		ProjectID: rec.ProjectID,
		Status:    rec.Status,
		StartedAt: rec.StartedAt.Format(time.RFC3339),
		Summary:   rec.Summary,
		Error:     rec.Error,
	}
	if rec.FinishedAt != nil {
		out.FinishedAt = rec.FinishedAt.Format(time.RFC3339)
	}
	if withReport && rec.ReportJSON != "" {
		out.Report = json.RawMessage(rec.ReportJSON)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}
