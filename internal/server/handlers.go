// File: internal/server/handlers.go
package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/planpilot-cli/api/schemas"
	"github.com/xkilldash9x/planpilot-cli/internal/reporting"
	"github.com/xkilldash9x/planpilot-cli/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorResponse is the JSON body for every non-report error.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg}); err != nil {
		s.logger.Error("Failed to write error response.", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to write response.", zap.Error(err))
	}
}

// handleHealthCheck confirms the server is responsive.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleLaunch accepts a plan document, executes it on a fresh browser
// session, and returns the rendered execution report verbatim. A session
// that cannot be created maps to 503; everything else, including step
// failures, still produces a 200 with the report carrying the error field.
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	plan, err := schemas.DecodePlanReader(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if plan.Goal == "" {
		s.respondError(w, http.StatusBadRequest, "plan goal must not be empty")
		return
	}

	s.logger.Info("Launching plan.",
		zap.String("goal", plan.Goal),
		zap.Int("steps", len(plan.Steps)),
	)

	report, err := s.launcher.Run(r.Context(), plan)
	if err != nil {
		var sessErr *schemas.SessionError
		if errors.As(err, &sessErr) {
			s.respondError(w, http.StatusServiceUnavailable, "browser unavailable: "+sessErr.Error())
			return
		}
		s.logger.Error("Run failed before a report could be built.", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "plan execution failed")
		return
	}

	rendered, err := reporting.Render(report)
	if err != nil {
		s.logger.Error("Failed to render execution report.", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(rendered)
}

// handleGetRun returns a stored run record.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusServiceUnavailable, "run history is disabled (no database configured)")
		return
	}

	runID := chi.URLParam(r, "runID")
	rec, err := s.history.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			s.respondError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("Failed to load run record.", zap.String("run_id", runID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	s.respondJSON(w, http.StatusOK, rec)
}

// handleListRuns returns the most recent run records.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusServiceUnavailable, "run history is disabled (no database configured)")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list run records.", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"count": len(records),
		"runs":  records,
	})
}
