package dm

import (
	"fmt"
	"strings"
	"time"

	"github.com/lawnchairsociety/questbridge/internal/engine"
	"github.com/lawnchairsociety/questbridge/internal/logger"
	"github.com/lawnchairsociety/questbridge/internal/quest"
	"github.com/lawnchairsociety/questbridge/internal/world"
)

// choiceExpiry is how long an offered accept/decline prompt stays valid
const choiceExpiry = 60 * time.Second

// Context is the world snapshot handed to the external text-generation layer
type Context struct {
	Time          time.Time       `json:"time"`
	Health        float64         `json:"health"`
	Food          float64         `json:"food"`
	Position      *world.Position `json:"pos,omitempty"`
	PlayersNearby []string        `json:"playersNearby"`
	Persona       PersonaConfig   `json:"persona"`
}

// ChatChoice describes the pending prompt returned from a chat turn
type ChatChoice struct {
	QuestID   string    `json:"questId"`
	Options   []string  `json:"options"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ChatOutput is the result of one player chat turn
type ChatOutput struct {
	DMText         string      `json:"dmText"`
	AwaitingChoice *ChatChoice `json:"awaitingChoice,omitempty"`
	ToolCalls      []Call      `json:"toolCalls,omitempty"`
}

// Orchestrator decides when free-text chat turns into a quest offer. It does
// not generate prose itself; flavor text comes from blueprints and the
// external persona layer.
type Orchestrator struct {
	engine   *engine.Engine
	agent    world.Agent
	library  *quest.Library
	personas *Personas
}

// NewOrchestrator wires the orchestrator to its collaborators
func NewOrchestrator(eng *engine.Engine, agent world.Agent, library *quest.Library, personas *Personas) *Orchestrator {
	return &Orchestrator{engine: eng, agent: agent, library: library, personas: personas}
}

// BuildContext assembles the lightweight world snapshot for the player
func (o *Orchestrator) BuildContext(playerName string) Context {
	status := o.agent.GetStatus()

	ctx := Context{
		Time:          time.Now(),
		Health:        status.Health,
		Food:          status.Food,
		PlayersNearby: o.agent.NearbyPlayers(),
		Persona:       o.personas.Get(),
	}
	if pos, ok := o.agent.GetPosition(); ok {
		ctx.Position = &pos
	}
	return ctx
}

// OnPlayerChat pattern-matches a quest-request intent in free text. On a
// match it mints a blueprint, instantiates it and publishes a clickable
// accept/decline prompt; otherwise it returns a generic reply with no side
// effects.
func (o *Orchestrator) OnPlayerChat(playerName, message string) (ChatOutput, error) {
	logger.Always("DM chat", "player", playerName, "message", message)

	lower := strings.ToLower(message)
	if !strings.Contains(lower, "quest") && !strings.Contains(lower, "quête") {
		return ChatOutput{DMText: "Je t'écoute. Souhaites-tu une quête ?"}, nil
	}

	seed := fmt.Sprintf("%s-%d", playerName, time.Now().UnixMilli())
	bp := o.library.MintForBiomes(nil, seed)

	q, err := o.engine.Instantiate(bp, playerName)
	if err != nil {
		return ChatOutput{}, fmt.Errorf("failed to create quest offer: %w", err)
	}

	options := []string{"oui", "non"}
	text := "Le vent murmure une mission... Acceptes-tu cette quête ? (oui/non)"
	if err := SendDMWithChoices(o.agent, playerName, text, q.ID, options); err != nil {
		logger.Warning("Failed to publish quest offer", "quest", q.ID, "error", err)
	}

	return ChatOutput{
		DMText: text,
		AwaitingChoice: &ChatChoice{
			QuestID:   q.ID,
			Options:   options,
			ExpiresAt: time.Now().Add(choiceExpiry),
		},
		ToolCalls: []Call{
			{Tool: ToolProposeQuest, Args: map[string]any{"playerName": playerName, "questId": q.ID}},
		},
	}, nil
}
