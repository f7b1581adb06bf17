package dm

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/questbridge/internal/engine"
	"github.com/lawnchairsociety/questbridge/internal/events"
	"github.com/lawnchairsociety/questbridge/internal/quest"
	"github.com/lawnchairsociety/questbridge/internal/store"
	"github.com/lawnchairsociety/questbridge/internal/world"
)

// giveCall records one GiveItem invocation
type giveCall struct {
	Player string
	ItemID string
	Count  int
}

// fakeAgent records chat and command traffic for assertions
type fakeAgent struct {
	mu        sync.Mutex
	inventory []world.ItemStack
	said      []string
	commands  []string
	gives     []giveCall
	failCmds  bool // when true, RunCommand reports not-OK to exercise fallbacks
}

func (f *fakeAgent) GetInventory() []world.ItemStack {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]world.ItemStack, len(f.inventory))
	copy(out, f.inventory)
	return out
}

func (f *fakeAgent) Say(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, text)
	return nil
}

func (f *fakeAgent) RunCommand(cmd string, timeout time.Duration) (world.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return world.CommandResult{OK: !f.failCmds}, nil
}

func (f *fakeAgent) GiveItem(player, itemID string, count int, enchants []world.Enchant) (world.GiveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gives = append(f.gives, giveCall{Player: player, ItemID: itemID, Count: count})
	return world.GiveResult{OK: true, Command: "/give " + player + " " + itemID}, nil
}

func (f *fakeAgent) GetStatus() world.Status { return world.Status{Health: 18, Food: 15} }

func (f *fakeAgent) GetPosition() (world.Position, bool) {
	return world.Position{X: 10, Y: 64, Z: -5}, true
}

func (f *fakeAgent) NearbyPlayers() []string { return []string{"Ann", "Bob"} }

func (f *fakeAgent) lastCommand() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) == 0 {
		return ""
	}
	return f.commands[len(f.commands)-1]
}

func (f *fakeAgent) commandCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

func (f *fakeAgent) saidCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.said)
}

// newTestRig builds an engine + agent pair backed by a fresh memory store
func newTestRig() (*engine.Engine, *fakeAgent, *store.MemoryStore) {
	agent := &fakeAgent{}
	st := store.NewMemoryStore()
	eng := engine.NewEngine(st, agent, events.NewMemoryBus(), time.Hour)
	return eng, agent, st
}

func testBlueprint() quest.Blueprint {
	return quest.DefaultBlueprint("test-seed", nil)
}
