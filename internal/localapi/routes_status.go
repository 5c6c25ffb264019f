package localapi

import (
	"net/http"
	"os"

	"ghostsync/cli/internal/session"
	"ghostsync/cli/internal/tunnel"
)

func (s *Server) registerStatusRoutes() {
	s.mux.HandleFunc("/api/v1/status", s.handleStatus)
	s.mux.HandleFunc("/api/v1/tunnels", s.handleTunnels)
	s.mux.HandleFunc("/api/v1/screen/latest", s.handleLatestFrame)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	out := map[string]any{
		"ws_clients": s.hub.ClientCount(),
	}
	if s.deps.Status != nil {
		out["automation"] = s.deps.Status.Status()
	}
	sessions := []session.Session{}
	if s.deps.Sessions != nil {
		sessions = s.deps.Sessions.List()
	}
	out["sessions"] = sessions
	tunnels := 0
	if s.deps.Tunnels != nil {
		tunnels = len(s.deps.Tunnels.List())
	}
	out["tunnels"] = tunnels
	respondOK(w, out)
}

func (s *Server) handleTunnels(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.deps.Tunnels == nil {
		respondError(w, http.StatusServiceUnavailable, "TUNNELS_UNAVAILABLE", "tunnel manager is unavailable")
		return
	}
	records := s.deps.Tunnels.List()
	if records == nil {
		records = []tunnel.Record{}
	}
	respondOK(w, records)
}

func (s *Server) handleLatestFrame(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.deps.Frames == nil {
		respondError(w, http.StatusServiceUnavailable, "FRAMES_UNAVAILABLE", "screen capture is unavailable")
		return
	}
	path := s.deps.Frames.LatestPath()
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "FRAME_NOT_FOUND", "no frame captured yet")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}
