package dm

import (
	"errors"
	"regexp"
	"strings"

	"github.com/lawnchairsociety/questbridge/internal/engine"
	"github.com/lawnchairsociety/questbridge/internal/logger"
	"github.com/lawnchairsociety/questbridge/internal/world"
)

// choicePattern matches lines of the form "##DM## q:<id> <option>"
var choicePattern = regexp.MustCompile(`(?i)^##DM##\s+q:(\S+)\s+(.+)$`)

// ChoiceParser turns inbound chat lines into engine calls. It is the event
// source that closes the accept/decline loop opened by SendDMWithChoices.
type ChoiceParser struct {
	engine *engine.Engine
	agent  world.Agent
}

// NewChoiceParser wires the parser to the engine and the chat channel
func NewChoiceParser(eng *engine.Engine, agent world.Agent) *ChoiceParser {
	return &ChoiceParser{engine: eng, agent: agent}
}

// HandleChat processes one chat line from a player. Returns false when the
// line is not a choice command. Engine failures (unknown quest ids) are
// logged and swallowed; the player gets no acknowledgement beyond silence.
func (p *ChoiceParser) HandleChat(username, message string) bool {
	match := choicePattern.FindStringSubmatch(strings.TrimSpace(message))
	if match == nil {
		return false
	}

	questID := match[1]
	option := strings.ToLower(strings.TrimSpace(match[2]))

	var err error
	var ack string
	switch option {
	case "oui", "yes":
		err = p.engine.Accept(questID)
		ack = "Quête acceptée. Bonne chance !"
	case "non", "no":
		err = p.engine.Decline(questID)
		ack = "Quête refusée. Une autre fois peut-être."
	default:
		err = p.engine.Branch(questID, option)
		ack = "Choix enregistré: " + option
	}

	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			logger.Warning("Choice referenced unknown quest", "quest", questID, "player", username)
		} else {
			logger.Error("Choice handling failed", "quest", questID, "player", username, "error", err)
		}
		return true
	}

	if ackErr := SendDMAck(p.agent, username, ack); ackErr != nil {
		logger.Warning("Choice ack failed", "player", username, "error", ackErr)
	}
	return true
}
