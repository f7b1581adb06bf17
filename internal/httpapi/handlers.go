package httpapi

import (
	"net/http"

	"github.com/lawnchairsociety/questbridge/internal/dm"
	"github.com/lawnchairsociety/questbridge/internal/logger"
	"github.com/lawnchairsociety/questbridge/internal/quest"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, map[string]string{"status": "ok"}, "")
}

type generateRequest struct {
	PlayerName string   `json:"playerName"`
	TemplateID string   `json:"templateId"`
	Seed       string   `json:"seed"`
	BiomeBias  []string `json:"biomeBias"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.PlayerName == "" {
		respondBadRequest(w, "playerName is required")
		return
	}

	var bp quest.Blueprint
	if req.TemplateID != "" {
		minted, err := s.c.Library.Mint(req.TemplateID, req.Seed)
		if err != nil {
			respondError(w, err)
			return
		}
		bp = minted
	} else {
		bp = s.c.Library.MintForBiomes(req.BiomeBias, req.Seed)
	}

	inst, err := s.c.Engine.Instantiate(bp, req.PlayerName)
	if err != nil {
		respondError(w, err)
		return
	}
	logger.Info("Quest generated", "quest_id", inst.ID, "player", req.PlayerName)
	respondSuccess(w, inst, "quest generated")
}

// questAction adapts the single-argument engine transitions into handlers.
// Invalid transitions are silent no-ops inside the engine, so a 200 here
// means the request was processed, not that the state changed.
func (s *Server) questAction(fn func(id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := fn(id); err != nil {
			respondError(w, err)
			return
		}
		inst, err := s.c.Engine.Get(id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondSuccess(w, inst, "")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	inst, err := s.c.Engine.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, inst, "")
}

type branchRequest struct {
	Choice string `json:"choice"`
}

func (s *Server) handleBranch(w http.ResponseWriter, r *http.Request) {
	var req branchRequest
	if err := decode(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.Choice == "" {
		respondBadRequest(w, "choice is required")
		return
	}
	id := r.PathValue("id")
	if err := s.c.Engine.Branch(id, req.Choice); err != nil {
		respondError(w, err)
		return
	}
	inst, err := s.c.Engine.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, inst, "")
}

func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inst, err := s.c.Engine.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}

	results, err := s.c.Dispatcher.Execute([]dm.Call{{
		Tool: dm.ToolGrantReward,
		Args: map[string]any{"playerName": inst.PlayerName, "questId": id},
	}})
	if err != nil {
		respondError(w, err)
		return
	}
	if err := s.c.Engine.Succeed(id); err != nil {
		respondError(w, err)
		return
	}
	inst, err = s.c.Engine.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, map[string]any{"quest": inst, "grants": results}, "reward granted")
}

type chatRequest struct {
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.PlayerName == "" || req.Message == "" {
		respondBadRequest(w, "playerName and message are required")
		return
	}
	out, err := s.c.Orchestrator.OnPlayerChat(req.PlayerName, req.Message)
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, out, "")
}

type toolCallsRequest struct {
	PlayerName string    `json:"playerName"`
	Calls      []dm.Call `json:"calls"`
}

func (s *Server) handleToolCalls(w http.ResponseWriter, r *http.Request) {
	var req toolCallsRequest
	if err := decode(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if len(req.Calls) == 0 {
		respondBadRequest(w, "calls is required")
		return
	}
	for i := range req.Calls {
		if req.Calls[i].Args == nil {
			continue
		}
		if _, ok := req.Calls[i].Args["playerName"]; !ok && req.PlayerName != "" {
			req.Calls[i].Args["playerName"] = req.PlayerName
		}
	}
	results, err := s.c.Dispatcher.Execute(req.Calls)
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, results, "")
}

type personaRequest struct {
	Persona     string   `json:"persona"`
	Temperature *float64 `json:"temperature"`
}

func (s *Server) handlePersona(w http.ResponseWriter, r *http.Request) {
	var req personaRequest
	if err := decode(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	temp := -1.0
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	if err := s.c.Personas.Set(dm.Persona(req.Persona), temp); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	respondSuccess(w, s.c.Personas.Get(), "persona updated")
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	playerName := r.URL.Query().Get("playerName")
	respondSuccess(w, s.c.Orchestrator.BuildContext(playerName), "")
}
