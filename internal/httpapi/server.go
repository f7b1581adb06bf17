// Package httpapi exposes the thin HTTP surface over the quest engine and
// the DM orchestrator. Every route is a direct pass-through to one engine
// or orchestrator method; the only logic here is decoding, dispatch and
// error translation.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lawnchairsociety/questbridge/internal/dm"
	"github.com/lawnchairsociety/questbridge/internal/engine"
	"github.com/lawnchairsociety/questbridge/internal/logger"
	"github.com/lawnchairsociety/questbridge/internal/quest"
	"github.com/lawnchairsociety/questbridge/internal/world"
)

// Container is the explicit service wiring constructed once at process
// start and passed by reference into every handler. There is no global
// registry.
type Container struct {
	Engine       *engine.Engine
	Orchestrator *dm.Orchestrator
	Dispatcher   *dm.Dispatcher
	Personas     *dm.Personas
	Library      *quest.Library
	Agent        world.Agent
}

// Server serves the quest and DM routes
type Server struct {
	c *Container
}

// NewServer creates a server over the given container
func NewServer(c *Container) *Server {
	return &Server{c: c}
}

// Routes builds the HTTP handler for all quest and DM endpoints
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /quests/generate", s.handleGenerate)
	mux.HandleFunc("POST /quests/{id}/start", s.questAction(s.c.Engine.Start))
	mux.HandleFunc("POST /quests/{id}/accept", s.questAction(s.c.Engine.Accept))
	mux.HandleFunc("POST /quests/{id}/decline", s.questAction(s.c.Engine.Decline))
	mux.HandleFunc("GET /quests/{id}/status", s.handleStatus)
	mux.HandleFunc("POST /quests/{id}/branch", s.handleBranch)
	mux.HandleFunc("POST /quests/{id}/stop", s.questAction(func(id string) error {
		return s.c.Engine.Fail(id, "stopped")
	}))
	mux.HandleFunc("POST /quests/{id}/reward", s.handleReward)

	mux.HandleFunc("POST /dm/chat", s.handleChat)
	mux.HandleFunc("POST /dm/tool-calls", s.handleToolCalls)
	mux.HandleFunc("POST /dm/persona", s.handlePersona)
	mux.HandleFunc("GET /dm/context", s.handleContext)

	return mux
}

// envelope is the uniform response shape
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func respondSuccess(w http.ResponseWriter, data any, message string) {
	respond(w, http.StatusOK, envelope{Success: true, Data: data, Message: message})
}

func respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrNotFound) {
		respond(w, http.StatusNotFound, envelope{Error: err.Error()})
		return
	}
	var verr *dm.ValidationError
	if errors.As(err, &verr) {
		respond(w, http.StatusBadRequest, envelope{Error: err.Error()})
		return
	}
	respond(w, http.StatusInternalServerError, envelope{Error: err.Error()})
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respond(w, http.StatusBadRequest, envelope{Error: message})
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
