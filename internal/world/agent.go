// Package world defines the boundary to the external game-world agent.
// The engine and orchestrator only consume this interface; the process
// that actually moves, mines, chats and reads inventory lives elsewhere.
package world

import (
	"time"
)

// ItemStack is one inventory slot snapshot
type ItemStack struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Position is a location in the world
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CommandResult is the outcome of a raw server command
type CommandResult struct {
	OK     bool     `json:"ok"`
	Output []string `json:"output,omitempty"`
}

// GiveResult is the outcome of an item grant
type GiveResult struct {
	OK      bool     `json:"ok"`
	Command string   `json:"command"`
	Output  []string `json:"output,omitempty"`
}

// Enchant mirrors quest reward enchantments at the agent boundary
type Enchant struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// Status is the agent's vital snapshot
type Status struct {
	Health float64 `json:"health"`
	Food   float64 `json:"food"`
}

// ChatMessage is one inbound chat line from the game world
type ChatMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Seq      int64  `json:"seq"`
}

// Agent is the game-world collaborator the engine polls and publishes through.
// Chat delivery is best-effort; implementations may drop messages.
type Agent interface {
	// GetInventory returns a snapshot of the agent's inventory.
	GetInventory() []ItemStack

	// Say sends a plain chat message.
	Say(text string) error

	// RunCommand runs a raw server command and waits up to timeout for output.
	RunCommand(cmd string, timeout time.Duration) (CommandResult, error)

	// GiveItem grants count of itemID to the named player.
	GiveItem(player, itemID string, count int, enchants []Enchant) (GiveResult, error)

	// GetStatus returns the agent's health and food levels.
	GetStatus() Status

	// GetPosition returns the agent's position; false when not spawned.
	GetPosition() (Position, bool)

	// NearbyPlayers returns the usernames currently visible to the agent.
	NearbyPlayers() []string
}

// ChatAgent is an Agent that can also deliver inbound player chat.
type ChatAgent interface {
	Agent

	// OnChat registers a handler for inbound chat lines and returns a stop
	// function. Handlers run on the agent's delivery goroutine.
	OnChat(fn func(username, message string)) (stop func())
}
