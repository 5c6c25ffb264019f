package localapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"ghostsync/cli/internal/automation"
	"ghostsync/cli/internal/historydb"
	"ghostsync/cli/internal/session"
	"ghostsync/cli/internal/tunnel"
)

type StatusSource interface {
	Status() automation.Status
}

type History interface {
	ListRuns(limit int) ([]historydb.RunRecord, error)
	GetRun(runID string) (historydb.RunRecord, error)
	ListProjects(limit int) ([]historydb.ProjectEntry, error)
	Clear() error
}

type TunnelLister interface {
	List() []tunnel.Record
}

type SessionLister interface {
	List() []session.Session
}

type FrameSource interface {
	LatestPath() string
}

// Deps are optional; a route whose dependency is nil answers 503.
type Deps struct {
	Status   StatusSource
	History  History
	Tunnels  TunnelLister
	Sessions SessionLister
	Frames   FrameSource
	Logger   *slog.Logger
}

// Server is the loopback observation API next to the bot.
type Server struct {
	deps   Deps
	mux    *http.ServeMux
	hub    *WSHub
	logger *slog.Logger
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "localapi")
	s := &Server{deps: deps, mux: http.NewServeMux(), hub: NewWSHub(logger), logger: logger}
	s.registerStatusRoutes()
	s.registerRunRoutes()
	s.registerProjectRoutes()
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/ws", s.hub.HandleWS)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// SetStatus attaches the automation snapshot source, which is built after
// the server because it publishes through it.
func (s *Server) SetStatus(src StatusSource) {
	s.deps.Status = src
}

// Publish fans an automation event out to websocket subscribers.
func (s *Server) Publish(topic string, payload map[string]any) {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.Publish(topic, payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, map[string]any{"status": "ok"})
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": data})
}

func respondError(w http.ResponseWriter, code int, errCode string, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "error": map[string]any{"code": errCode, "message": msg}})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return false
	}
	return true
}

func queryLimit(r *http.Request, fallback, ceiling int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit")))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > ceiling {
		return ceiling
	}
	return n
}
