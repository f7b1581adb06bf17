package dm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lawnchairsociety/questbridge/internal/logger"
	"github.com/lawnchairsociety/questbridge/internal/world"
)

// ChoicePrefix marks inbound chat lines carrying a quest choice
const ChoicePrefix = "##DM##"

const commandTimeout = 1500 * time.Millisecond

// tellraw JSON components. Marshaling through encoding/json guarantees any
// quote in player or generated text is escaped, so embedded input cannot
// break the payload's structure.
type clickEvent struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

type hoverEvent struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

type textComponent struct {
	Text       string          `json:"text"`
	Color      string          `json:"color,omitempty"`
	Bold       bool            `json:"bold,omitempty"`
	ClickEvent *clickEvent     `json:"clickEvent,omitempty"`
	HoverEvent *hoverEvent     `json:"hoverEvent,omitempty"`
	Extra      []textComponent `json:"extra,omitempty"`
}

// ChoiceCommand is the line a click resubmits for the given quest and option
func ChoiceCommand(questID, option string) string {
	return fmt.Sprintf("%s q:%s %s", ChoicePrefix, questID, option)
}

// SendDMWithChoices renders a clickable multi-option prompt to the player.
// Clicking an option suggests the corresponding choice command back into
// chat. Falls back to a plain message when the tellraw command fails; chat
// delivery is best-effort either way.
func SendDMWithChoices(agent world.Agent, playerName, text, questID string, options []string) error {
	root := textComponent{Text: text, Color: "yellow"}
	for i, opt := range options {
		label := " " + opt
		color := "aqua"
		if i == 0 {
			label = " [" + opt + "]"
			color = "green"
		}
		root.Extra = append(root.Extra, textComponent{
			Text:  label,
			Color: color,
			Bold:  true,
			ClickEvent: &clickEvent{
				Action: "suggest_command",
				Value:  ChoiceCommand(questID, opt),
			},
			HoverEvent: &hoverEvent{
				Action: "show_text",
				Value:  "Clique pour choisir: " + opt,
			},
		})
	}

	payload, err := json.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to encode choice payload: %w", err)
	}

	cmd := fmt.Sprintf("/tellraw %s %s", playerName, payload)
	out, err := agent.RunCommand(cmd, commandTimeout)
	if err != nil || !out.OK {
		// Plain-chat fallback keeps the choices usable without tellraw
		labels := make([]string, len(options))
		for i, opt := range options {
			labels[i] = "[" + opt + "]"
		}
		fallback := fmt.Sprintf("%s Options: %s (ou tape: %s q:%s <choix>)",
			text, strings.Join(labels, " "), ChoicePrefix, questID)
		if sayErr := agent.Say(fallback); sayErr != nil {
			logger.Warning("Choice fallback chat failed", "player", playerName, "error", sayErr)
		}
	}
	return nil
}

// SendDMAck sends a plain confirmation line to the player
func SendDMAck(agent world.Agent, playerName, text string) error {
	payload, err := json.Marshal(textComponent{Text: text, Color: "green"})
	if err != nil {
		return fmt.Errorf("failed to encode ack payload: %w", err)
	}

	out, err := agent.RunCommand(fmt.Sprintf("/tellraw %s %s", playerName, payload), commandTimeout)
	if err != nil || !out.OK {
		if sayErr := agent.Say(text); sayErr != nil {
			logger.Warning("Ack fallback chat failed", "player", playerName, "error", sayErr)
		}
	}
	return nil
}
