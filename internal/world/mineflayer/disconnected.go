package mineflayer

import (
	"errors"
	"time"

	"github.com/lawnchairsociety/questbridge/internal/world"
)

// ErrNotConnected is returned by world actions when no agent is configured.
var ErrNotConnected = errors.New("world agent not connected")

// Disconnected is a stand-in agent for running the bridge without a bot.
// Reads return empty snapshots; actions fail with ErrNotConnected.
type Disconnected struct{}

// NewDisconnected creates the stand-in agent
func NewDisconnected() *Disconnected {
	return &Disconnected{}
}

func (d *Disconnected) GetInventory() []world.ItemStack { return nil }

func (d *Disconnected) Say(text string) error { return ErrNotConnected }

func (d *Disconnected) RunCommand(cmd string, timeout time.Duration) (world.CommandResult, error) {
	return world.CommandResult{}, ErrNotConnected
}

func (d *Disconnected) GiveItem(player, itemID string, count int, enchants []world.Enchant) (world.GiveResult, error) {
	return world.GiveResult{}, ErrNotConnected
}

func (d *Disconnected) GetStatus() world.Status { return world.Status{} }

func (d *Disconnected) GetPosition() (world.Position, bool) { return world.Position{}, false }

func (d *Disconnected) NearbyPlayers() []string { return nil }

// OnChat never delivers; there is no chat feed to poll
func (d *Disconnected) OnChat(fn func(username, message string)) func() {
	return func() {}
}
