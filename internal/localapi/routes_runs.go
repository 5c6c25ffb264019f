package localapi

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

func (s *Server) registerRunRoutes() {
	s.mux.HandleFunc("/api/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/api/v1/runs/", s.handleRunByID)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.deps.History == nil {
		respondError(w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "run history is unavailable")
		return
	}
	runs, err := s.deps.History.ListRuns(queryLimit(r, defaultListLimit, maxListLimit))
	if err != nil {
		s.logger.Warn("list runs failed", "err", err)
		respondError(w, http.StatusInternalServerError, "RUNS_LIST_FAILED", err.Error())
		return
	}
	respondOK(w, runs)
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/runs/"), "/")
	if runID == "" || strings.Contains(runID, "/") {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
		return
	}
	if s.deps.History == nil {
		respondError(w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "run history is unavailable")
		return
	}
	run, err := s.deps.History.GetRun(runID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "RUN_NOT_FOUND", "run not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "RUN_LOAD_FAILED", err.Error())
		return
	}
	respondOK(w, run)
}
