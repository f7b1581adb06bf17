package quest

import (
	"time"
)

// State represents the lifecycle state of a quest instance
type State string

const (
	StateIdle           State = "idle"            // Created but not yet offered
	StateOffering       State = "offering"        // Offered to a player, waiting for accept/decline
	StateAwaitingChoice State = "awaiting_choice" // Waiting on a branch choice from the player
	StateRunning        State = "running"         // Accepted and being tracked by watchers
	StatePaused         State = "paused"          // Suspended, watchers inactive
	StateSuccess        State = "success"         // Terminal: objectives met
	StateFailure        State = "failure"         // Terminal: declined, timed out, or stopped
)

// IsTerminal returns true for states that can never be left
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailure
}

// ObjectiveType defines the kind of measurable sub-goal
type ObjectiveType string

const (
	ObjectiveCollect  ObjectiveType = "COLLECT"  // Gather items
	ObjectiveKill     ObjectiveType = "KILL"     // Defeat mobs
	ObjectiveGoTo     ObjectiveType = "GO_TO"    // Reach a location
	ObjectiveInteract ObjectiveType = "INTERACT" // Use or touch something
	ObjectiveEscort   ObjectiveType = "ESCORT"   // Protect an entity to a destination
)

// ConditionType defines a rule that can end a quest independently of objectives
type ConditionType string

const (
	ConditionTimer       ConditionType = "TIMER"         // Expires after params["seconds"]
	ConditionDeath       ConditionType = "DEATH"         // Player death
	ConditionLeaveArea   ConditionType = "LEAVE_AREA"    // Player left the world anchor radius
	ConditionLostKeyItem ConditionType = "LOST_KEY_ITEM" // Player dropped a required item
	ConditionCustom      ConditionType = "CUSTOM"        // Evaluated by an external system
)

// Objective is a single measurable sub-goal within a quest
type Objective struct {
	ID        string         `json:"id" yaml:"id"`
	Type      ObjectiveType  `json:"type" yaml:"type"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"` // e.g. {item: "minecraft:oak_planks", count: 8}
	Progress  int            `json:"progress" yaml:"-"`
	Target    int            `json:"target" yaml:"target"`
	Completed bool           `json:"completed" yaml:"-"`
}

// Condition is a success or failure rule attached to a quest
type Condition struct {
	ID     string         `json:"id" yaml:"id"`
	Type   ConditionType  `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"` // e.g. {seconds: 900} for TIMER
}

// Seconds returns the TIMER duration, or 0 if the condition has none
func (c Condition) Seconds() int {
	if c.Type != ConditionTimer {
		return 0
	}
	switch v := c.Params["seconds"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Enchant describes an enchantment applied to a reward item
type Enchant struct {
	ID    string `json:"id" yaml:"id"`
	Level int    `json:"level" yaml:"level"`
}

// RewardItem is a single item grant in a reward
type RewardItem struct {
	ItemID   string    `json:"itemId" yaml:"item_id"`
	Count    int       `json:"count" yaml:"count"`
	Enchants []Enchant `json:"enchants,omitempty" yaml:"enchants,omitempty"`
}

// Reward defines what the player receives on completion
type Reward struct {
	Commands []string     `json:"commands,omitempty" yaml:"commands,omitempty"` // Raw server commands (/give, /effect...)
	Items    []RewardItem `json:"items,omitempty" yaml:"items,omitempty"`
	XP       int          `json:"xp,omitempty" yaml:"xp,omitempty"`
}

// FlavorLines holds optional narration attached to lifecycle moments
type FlavorLines struct {
	Start   string   `json:"start,omitempty" yaml:"start,omitempty"`
	Success []string `json:"success,omitempty" yaml:"success,omitempty"`
	Failure []string `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Blueprint is an immutable quest template from which instances are created
type Blueprint struct {
	ID                string      `json:"id,omitempty" yaml:"id,omitempty"`
	Title             string      `json:"title" yaml:"title"`
	Synopsis          string      `json:"synopsis" yaml:"synopsis"`
	PersonaTag        string      `json:"personaTag,omitempty" yaml:"persona_tag,omitempty"`
	Seed              string      `json:"seed" yaml:"seed"`
	BiomeBias         []string    `json:"biomeBias,omitempty" yaml:"biome_bias,omitempty"`
	Objectives        []Objective `json:"objectives" yaml:"objectives"`
	SuccessConditions []Condition `json:"successConditions,omitempty" yaml:"success_conditions,omitempty"`
	FailureConditions []Condition `json:"failureConditions,omitempty" yaml:"failure_conditions,omitempty"`
	Reward            Reward      `json:"reward" yaml:"reward"`
	FlavorLines       FlavorLines `json:"flavorLines,omitempty" yaml:"flavor_lines,omitempty"`
	NoveltySignature  string      `json:"noveltySignature" yaml:"novelty_signature,omitempty"`
}

// AwaitingChoice describes a pending multi-option prompt shown to the player
type AwaitingChoice struct {
	Prompt    string    `json:"prompt"`
	Options   []string  `json:"options"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// WorldAnchor pins a quest to a location and radius in the world
type WorldAnchor struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Radius float64 `json:"radius"`
}

// Runtime is the mutable bag of per-instance tracking data
type Runtime struct {
	AwaitingChoice *AwaitingChoice    `json:"awaitingChoice,omitempty"`
	WorldAnchor    *WorldAnchor       `json:"worldAnchor,omitempty"`
	Counters       map[string]float64 `json:"counters,omitempty"`
}

// Instance is a stateful, per-player copy of a blueprint.
// Watcher handles are engine-private and never appear here;
// the persisted record is exactly this struct.
type Instance struct {
	Blueprint `yaml:",inline"`

	ID         string    `json:"id"`
	PlayerName string    `json:"playerName"`
	State      State     `json:"state"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	Runtime    Runtime   `json:"runtime"`
}

// SetCounter records a runtime counter, allocating the map on first use
func (q *Instance) SetCounter(key string, value float64) {
	if q.Runtime.Counters == nil {
		q.Runtime.Counters = make(map[string]float64)
	}
	q.Runtime.Counters[key] = value
}

// Counter returns a runtime counter value, or 0 if unset
func (q *Instance) Counter(key string) float64 {
	return q.Runtime.Counters[key]
}

// CollectObjectives returns the indexes of all COLLECT objectives
func (q *Instance) CollectObjectives() []int {
	idx := make([]int, 0, len(q.Objectives))
	for i, o := range q.Objectives {
		if o.Type == ObjectiveCollect {
			idx = append(idx, i)
		}
	}
	return idx
}

// TimerFailure returns the first TIMER failure condition, if any
func (q *Instance) TimerFailure() (Condition, bool) {
	for _, c := range q.FailureConditions {
		if c.Type == ConditionTimer {
			return c, true
		}
	}
	return Condition{}, false
}

// Clone returns a deep copy independent of the receiver
func (q *Instance) Clone() *Instance {
	if q == nil {
		return nil
	}
	out := *q
	out.BiomeBias = cloneSlice(q.BiomeBias)
	out.Objectives = cloneObjectives(q.Objectives)
	out.SuccessConditions = cloneConditions(q.SuccessConditions)
	out.FailureConditions = cloneConditions(q.FailureConditions)
	out.Reward = cloneReward(q.Reward)
	out.FlavorLines.Success = cloneSlice(q.FlavorLines.Success)
	out.FlavorLines.Failure = cloneSlice(q.FlavorLines.Failure)
	if q.Runtime.AwaitingChoice != nil {
		ac := *q.Runtime.AwaitingChoice
		ac.Options = cloneSlice(q.Runtime.AwaitingChoice.Options)
		out.Runtime.AwaitingChoice = &ac
	}
	if q.Runtime.WorldAnchor != nil {
		wa := *q.Runtime.WorldAnchor
		out.Runtime.WorldAnchor = &wa
	}
	if q.Runtime.Counters != nil {
		out.Runtime.Counters = make(map[string]float64, len(q.Runtime.Counters))
		for k, v := range q.Runtime.Counters {
			out.Runtime.Counters[k] = v
		}
	}
	return &out
}

func cloneSlice(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneObjectives(in []Objective) []Objective {
	if in == nil {
		return nil
	}
	out := make([]Objective, len(in))
	for i, o := range in {
		out[i] = o
		out[i].Params = cloneParams(o.Params)
	}
	return out
}

func cloneConditions(in []Condition) []Condition {
	if in == nil {
		return nil
	}
	out := make([]Condition, len(in))
	for i, c := range in {
		out[i] = c
		out[i].Params = cloneParams(c.Params)
	}
	return out
}

func cloneReward(in Reward) Reward {
	out := in
	out.Commands = cloneSlice(in.Commands)
	if in.Items != nil {
		out.Items = make([]RewardItem, len(in.Items))
		for i, it := range in.Items {
			out.Items[i] = it
			if it.Enchants != nil {
				out.Items[i].Enchants = make([]Enchant, len(it.Enchants))
				copy(out.Items[i].Enchants, it.Enchants)
			}
		}
	}
	return out
}

func cloneParams(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
