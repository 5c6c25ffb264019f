package localapi

import "net/http"

func (s *Server) registerProjectRoutes() {
	s.mux.HandleFunc("/api/v1/projects", s.handleProjects)
}

// handleProjects lists recent project folders; DELETE clears all history.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		respondError(w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "run history is unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		projects, err := s.deps.History.ListProjects(queryLimit(r, defaultListLimit, maxListLimit))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "PROJECTS_LIST_FAILED", err.Error())
			return
		}
		respondOK(w, projects)
	case http.MethodDelete:
		if err := s.deps.History.Clear(); err != nil {
			respondError(w, http.StatusInternalServerError, "HISTORY_CLEAR_FAILED", err.Error())
			return
		}
		s.logger.Info("history cleared")
		s.Publish("history.cleared", nil)
		respondOK(w, map[string]any{"cleared": true})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}
