package dm

import (
	"fmt"
	"time"

	"github.com/lawnchairsociety/questbridge/internal/engine"
	"github.com/lawnchairsociety/questbridge/internal/logger"
	"github.com/lawnchairsociety/questbridge/internal/quest"
	"github.com/lawnchairsociety/questbridge/internal/world"
)

// Tool names the dispatcher will route
const (
	ToolProposeQuest   = "propose_quest"
	ToolStartQuest     = "start_quest"
	ToolBranchQuest    = "branch_quest"
	ToolSetTimer       = "set_timer"
	ToolGrantReward    = "grant_reward"
	ToolSpawnEncounter = "spawn_encounter"
	ToolApplyEffect    = "apply_effect"
	ToolDMSay          = "dm_say"
)

// allowedTools is the fixed allow-list of routable tool names
var allowedTools = map[string]bool{
	ToolProposeQuest:   true,
	ToolStartQuest:     true,
	ToolBranchQuest:    true,
	ToolSetTimer:       true,
	ToolGrantReward:    true,
	ToolSpawnEncounter: true,
	ToolApplyEffect:    true,
	ToolDMSay:          true,
}

// Call is one externally issued tool intent
type Call struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// CallResult records the outcome of executing a single call
type CallResult struct {
	Tool  string `json:"tool"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// ValidationError rejects a whole batch before any execution
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Tool)
}

// ValidateToolCalls checks every call against the allow-list. Any unknown
// tool name or missing args object rejects the entire batch, identifying
// the offending tool; nothing executes on failure.
func ValidateToolCalls(calls []Call) error {
	for _, c := range calls {
		if !allowedTools[c.Tool] {
			return &ValidationError{Tool: c.Tool, Reason: "tool not allowed"}
		}
		if c.Args == nil {
			return &ValidationError{Tool: c.Tool, Reason: "invalid args for tool"}
		}
	}
	return nil
}

// Dispatcher routes validated tool calls onto engine operations and
// world-agent side effects
type Dispatcher struct {
	engine  *engine.Engine
	agent   world.Agent
	library *quest.Library
}

// NewDispatcher wires the dispatcher to its collaborators
func NewDispatcher(eng *engine.Engine, agent world.Agent, library *quest.Library) *Dispatcher {
	return &Dispatcher{engine: eng, agent: agent, library: library}
}

// Execute validates the batch, then runs each call independently: one call's
// failure is recorded in its own result and never aborts the rest.
func (d *Dispatcher) Execute(calls []Call) ([]CallResult, error) {
	if err := ValidateToolCalls(calls); err != nil {
		return nil, err
	}

	results := make([]CallResult, 0, len(calls))
	for _, c := range calls {
		result := CallResult{Tool: c.Tool, OK: true}
		data, err := d.execute(c)
		if err != nil {
			result.OK = false
			result.Error = err.Error()
			logger.Warning("Tool call failed", "tool", c.Tool, "error", err)
		} else {
			result.Data = data
		}
		results = append(results, result)
	}
	return results, nil
}

func (d *Dispatcher) execute(c Call) (any, error) {
	switch c.Tool {
	case ToolProposeQuest:
		playerName := stringArg(c.Args, "playerName")
		if playerName == "" {
			return nil, fmt.Errorf("propose_quest requires playerName")
		}
		seed := stringArg(c.Args, "seed")
		if seed == "" {
			seed = fmt.Sprintf("%s-%d", playerName, time.Now().UnixMilli())
		}
		bp := d.library.MintForBiomes(stringsArg(c.Args, "biomeBias"), seed)
		q, err := d.engine.Instantiate(bp, playerName)
		if err != nil {
			return nil, err
		}
		return map[string]any{"questId": q.ID}, nil

	case ToolStartQuest:
		return nil, d.engine.Start(stringArg(c.Args, "questId"))

	case ToolBranchQuest:
		return nil, d.engine.Branch(stringArg(c.Args, "questId"), stringArg(c.Args, "choice"))

	case ToolSetTimer:
		return nil, d.engine.SetTimer(stringArg(c.Args, "questId"), intArg(c.Args, "seconds"), stringArg(c.Args, "label"))

	case ToolGrantReward:
		return d.grantReward(c.Args)

	case ToolSpawnEncounter:
		cmd := stringArg(c.Args, "command")
		if cmd == "" {
			return nil, fmt.Errorf("spawn_encounter requires command")
		}
		out, err := d.agent.RunCommand(cmd, commandTimeout)
		if err != nil {
			return nil, err
		}
		return out, nil

	case ToolApplyEffect:
		player := stringArg(c.Args, "playerName")
		effect := stringArg(c.Args, "effect")
		if player == "" || effect == "" {
			return nil, fmt.Errorf("apply_effect requires playerName and effect")
		}
		seconds := intArg(c.Args, "seconds")
		if seconds < 1 {
			seconds = 30
		}
		cmd := fmt.Sprintf("/effect give %s %s %d", player, effect, seconds)
		out, err := d.agent.RunCommand(cmd, commandTimeout)
		if err != nil {
			return nil, err
		}
		return out, nil

	case ToolDMSay:
		text := stringArg(c.Args, "text")
		if text == "" {
			return nil, fmt.Errorf("dm_say requires text")
		}
		return nil, d.agent.Say(text)
	}
	// Unreachable after validation
	return nil, fmt.Errorf("tool not allowed: %s", c.Tool)
}

// grantReward iterates the requested items and grants each through the agent
func (d *Dispatcher) grantReward(args map[string]any) (any, error) {
	player := stringArg(args, "playerName")
	if player == "" {
		return nil, fmt.Errorf("grant_reward requires playerName")
	}

	items := itemsArg(args, "items")
	if len(items) == 0 {
		// Fall back to the quest's own reward when only a quest id is given
		questID := stringArg(args, "questId")
		if questID == "" {
			return nil, fmt.Errorf("grant_reward requires items or questId")
		}
		q, err := d.engine.Get(questID)
		if err != nil {
			return nil, err
		}
		items = q.Reward.Items
	}

	granted := make([]world.GiveResult, 0, len(items))
	for _, item := range items {
		enchants := make([]world.Enchant, len(item.Enchants))
		for i, en := range item.Enchants {
			enchants[i] = world.Enchant{ID: en.ID, Level: en.Level}
		}
		out, err := d.agent.GiveItem(player, item.ItemID, item.Count, enchants)
		if err != nil {
			return nil, fmt.Errorf("failed to grant %s: %w", item.ItemID, err)
		}
		granted = append(granted, out)
	}
	return map[string]any{"granted": len(granted)}, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func stringsArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// itemsArg decodes a JSON-shaped items list into reward items
func itemsArg(args map[string]any, key string) []quest.RewardItem {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]quest.RewardItem, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := quest.RewardItem{
			ItemID: stringArg(m, "itemId"),
			Count:  intArg(m, "count"),
		}
		if item.ItemID == "" {
			continue
		}
		if item.Count < 1 {
			item.Count = 1
		}
		out = append(out, item)
	}
	return out
}
