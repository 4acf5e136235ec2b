package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/docflow/docflow/internal/agent"
	"github.com/docflow/docflow/internal/config"
	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/logger"
)

// Server is the HTTP+WebSocket surface over the session command
// pipeline. Grounded on pkg/api/server.go's Server (mux assembly,
// CORS/auth middleware wrapping, ListenAndServe in a goroutine,
// graceful Shutdown), generalized from a chat/dashboard API to the
// seven-command session surface of spec §6.
type Server struct {
	cfg       *config.Config
	log       *logger.Logger
	sessions  *Manager
	wsHub     *WSHub
	startTime time.Time
	server    *http.Server
}

// NewServer wires a Server from its collaborators.
func NewServer(cfg *config.Config, log *logger.Logger, sessions *Manager, ws *WSHub) *Server {
	return &Server{cfg: cfg, log: log, sessions: sessions, wsHub: ws, startTime: time.Now()}
}

// Start begins listening on cfg.ListenAddr. Non-blocking: ListenAndServe
// runs in its own goroutine, mirroring the teacher's Start.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/status", s.handleStatus)

	mux.HandleFunc("/api/v1/sessions", s.handleSessions)
	mux.HandleFunc("/api/v1/sessions/", s.handleSessionRoutes)

	mux.HandleFunc("/api/v1/ws", s.wsHub.HandleWebSocket)

	s.server = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      corsMiddleware(authMiddleware(s.cfg.APIKey, s.log, mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.InfoCF("api", "server starting", logger.Fields{"addr": s.cfg.ListenAddr})

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.ErrorCF("api", "server error", logger.Fields{"error": err.Error()})
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"session_count":  s.sessions.Registry().Count(),
	})
}

// openSessionRequest is the body of POST /api/v1/sessions: either a
// workspace-relative path (deriving a deterministic id) or a bare
// session_id to reattach to an already-started session.
type openSessionRequest struct {
	Path      string `json:"path"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var id domain.SessionID
	switch {
	case req.Path != "":
		id, _ = s.sessions.AgentForPath(req.Path)
	case req.SessionID != "":
		id = domain.SessionID(req.SessionID)
		s.sessions.AgentFor(id)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path or session_id is required"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"session_id": string(id)})
}

// handleSessionRoutes dispatches the /api/v1/sessions/{id}/... subtree:
// command execution and lock operations (spec §4.6, §4.8).
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}
	id := domain.SessionID(parts[0])
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch sub {
	case "commands":
		s.handleCommand(w, r, id)
	case "lock":
		s.handleLock(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session route"})
	}
}

// commandRequest mirrors agent.Command over the wire.
type commandRequest struct {
	Action        string         `json:"action"`
	Params        map[string]any `json:"params"`
	Mode          string         `json:"mode"`
	CorrelationID string         `json:"correlation_id"`
	Actor         string         `json:"actor"`
	Source        string         `json:"source"`
	LockToken     string         `json:"lock_token"`
	TimeoutMS     int            `json:"timeout_ms"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	cmd := agent.Command{
		Action:        agent.Action(req.Action),
		Params:        req.Params,
		Mode:          agent.ModeSync,
		CorrelationID: domain.CorrelationID(req.CorrelationID),
		Actor:         req.Actor,
		Source:        req.Source,
	}
	if req.Mode == string(agent.ModeAsync) {
		cmd.Mode = agent.ModeAsync
	}
	if req.LockToken != "" {
		t := domain.Token(req.LockToken)
		cmd.LockToken = &t
	}
	if req.TimeoutMS > 0 {
		cmd.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}

	a := s.sessions.AgentFor(id)
	result := a.Execute(r.Context(), cmd)

	status := http.StatusOK
	if result.Status == agent.StatusError {
		status = statusForError(result.Err)
	}
	writeJSON(w, status, result)
}

func statusForError(err *domain.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.Code {
	case domain.ErrInvalidParams:
		return http.StatusBadRequest
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrConflict, domain.ErrBusy:
		return http.StatusConflict
	case domain.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// lockRequest is the body of the lock subresource's mutating verbs.
type lockRequest struct {
	Op            string `json:"op"` // acquire | release | force
	Owner         string `json:"owner"`
	ExpectedToken string `json:"expected_token"`
	Token         string `json:"token"`
	Reason        string `json:"reason"`
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	a := s.sessions.AgentFor(id)

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	switch req.Op {
	case "acquire":
		var expected *domain.Token
		if req.ExpectedToken != "" {
			t := domain.Token(req.ExpectedToken)
			expected = &t
		}
		info, err := a.AcquireLock(req.Owner, expected)
		if err != nil {
			de, _ := domain.AsError(err)
			writeJSON(w, statusForError(de), map[string]any{"error": de})
			return
		}
		writeJSON(w, http.StatusOK, info)
	case "release":
		if err := a.ReleaseLock(domain.Token(req.Token)); err != nil {
			de, _ := domain.AsError(err)
			writeJSON(w, statusForError(de), map[string]any{"error": de})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
	case "force":
		info := a.ForceTakeover(req.Owner, req.Reason)
		writeJSON(w, http.StatusOK, info)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "op must be acquire, release, or force"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
