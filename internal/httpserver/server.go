package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/procureline/engine/internal/assignment"
	"github.com/procureline/engine/internal/audit"
	"github.com/procureline/engine/internal/models"
	"github.com/procureline/engine/internal/selection"
)

const defaultMetricsWindow = 30 * 24 * time.Hour

type Server struct {
	engine *assignment.Engine
}

func New(engine *assignment.Engine) *Server {
	return &Server{engine: engine}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/assignments/execute", s.handleExecute)
	r.Post("/assignments/recommendations", s.handleRecommendations)
	r.Get("/assignments/{prItemId}/validate", s.handleValidate)
	r.Get("/assignments/metrics", s.handleMetrics)
	r.Get("/healthz", s.handleHealth)

	return r
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var actx models.AssignmentContext
	if err := decodeJSON(w, r, &actx); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome := s.engine.ExecuteAssignment(r.Context(), actx)
	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var actx models.AssignmentContext
	if err := decodeJSON(w, r, &actx); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.engine.GetRecommendations(r.Context(), actx)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, assignment.ErrNoVendorOptions) || errors.Is(err, selection.ErrNoVendorsAvailable) {
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	prItemID := chi.URLParam(r, "prItemId")
	if prItemID == "" {
		respondError(w, http.StatusBadRequest, "prItemId is required")
		return
	}
	v, err := s.engine.ValidateAssignment(r.Context(), prItemID)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no audit history for item")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	end, err := parseTimeParam(r.URL.Query().Get("end"), time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}
	start, err := parseTimeParam(r.URL.Query().Get("start"), end.Add(-defaultMetricsWindow))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	if !start.Before(end) {
		respondError(w, http.StatusBadRequest, "start must be before end")
		return
	}
	m, err := s.engine.GetAssignmentMetrics(r.Context(), start, end)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseTimeParam accepts RFC3339 timestamps or bare dates.
func parseTimeParam(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
