// Package engine implements the quest lifecycle state machine. Each running
// instance owns a set of watchers (a one-shot failure timer, a repeating
// inventory poll) that race against player-driven transitions; the terminal
// guard at the top of every transition makes the outcome first-writer-wins.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/questbridge/internal/events"
	"github.com/lawnchairsociety/questbridge/internal/logger"
	"github.com/lawnchairsociety/questbridge/internal/quest"
	"github.com/lawnchairsociety/questbridge/internal/store"
	"github.com/lawnchairsociety/questbridge/internal/world"
)

// ErrNotFound is returned when an operation references an unknown quest id.
var ErrNotFound = errors.New("quest not found")

// DefaultPollInterval is how often COLLECT watchers sample the inventory.
const DefaultPollInterval = 2 * time.Second

// Engine drives quest instances through their lifecycle. All transitions
// are serialized by a single mutex; watcher callbacks take the same lock,
// so concurrent timer and poll firings on one instance resolve to exactly
// one terminal state.
type Engine struct {
	mu           sync.Mutex
	store        store.Store
	agent        world.Agent
	bus          events.Bus
	pollInterval time.Duration

	// watchers is the engine-private side table (instanceID, kind) -> handle.
	// Populated on Start/Accept, drained on terminal entry. Never persisted.
	watchers map[string]map[string]*watcherHandle
	closed   bool
}

// NewEngine creates an engine bound to a store, a world agent and an event
// bus. A pollInterval of 0 selects the default.
func NewEngine(st store.Store, agent world.Agent, bus events.Bus, pollInterval time.Duration) *Engine {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Engine{
		store:        st,
		agent:        agent,
		bus:          bus,
		pollInterval: pollInterval,
		watchers:     make(map[string]map[string]*watcherHandle),
	}
}

// Instantiate creates an offering instance from the blueprint and persists it.
func (e *Engine) Instantiate(bp quest.Blueprint, playerName string) (*quest.Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := bp.ID
	if id == "" {
		id = "q_" + uuid.NewString()
	}

	q := &quest.Instance{
		Blueprint:  bp,
		ID:         id,
		PlayerName: playerName,
		State:      quest.StateOffering,
	}
	q.Blueprint.ID = id

	if err := e.store.Save(q); err != nil {
		return nil, fmt.Errorf("failed to persist quest %s: %w", id, err)
	}
	logger.Info("Quest instantiated", "quest", id, "player", playerName, "title", bp.Title)
	return q.Clone(), nil
}

// Get returns the instance, or ErrNotFound for an unknown id.
func (e *Engine) Get(id string) (*quest.Instance, error) {
	q, exists, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return q, nil
}

// GetActiveFor returns some running instance for the player, or false.
func (e *Engine) GetActiveFor(playerName string) (*quest.Instance, bool) {
	all, err := e.store.List()
	if err != nil {
		logger.Error("Failed to list quests", "error", err)
		return nil, false
	}
	for _, q := range all {
		if q.PlayerName == playerName && q.State == quest.StateRunning {
			return q, true
		}
	}
	return nil, false
}

// Start transitions an offered quest to running and attaches its watchers.
// Idempotent: calling it on an already-running or terminal instance is a no-op.
func (e *Engine) Start(id string) error {
	return e.activate(id, "started")
}

// Accept is the player-driven form of Start.
func (e *Engine) Accept(id string) error {
	return e.activate(id, "accepted")
}

func (e *Engine) activate(id, verb string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, err := e.load(id)
	if err != nil {
		return err
	}
	if q.State != quest.StateOffering && q.State != quest.StateAwaitingChoice {
		return nil
	}

	q.State = quest.StateRunning
	q.StartedAt = time.Now()
	q.Runtime.AwaitingChoice = nil
	e.attachWatchers(q)

	if err := e.store.Save(q); err != nil {
		return fmt.Errorf("failed to persist quest %s: %w", id, err)
	}
	e.bus.Publish(events.Event{Name: events.QuestStarted, QuestID: q.ID, PlayerName: q.PlayerName})
	logger.Info("Quest "+verb, "quest", q.ID, "player", q.PlayerName)
	return nil
}

// Decline fails an offered quest with reason "declined". No-op on terminal
// instances.
func (e *Engine) Decline(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminate(id, quest.StateFailure, "declined")
}

// Branch records a player's free-text choice on a running quest. The counter
// derivation (choice length) is a placeholder, not game logic.
func (e *Engine) Branch(id, choice string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, err := e.load(id)
	if err != nil {
		return err
	}
	if q.State != quest.StateRunning {
		return nil
	}

	q.SetCounter("branch", float64(len(choice)))
	if err := e.store.Save(q); err != nil {
		return fmt.Errorf("failed to persist quest %s: %w", id, err)
	}
	e.bus.Publish(events.Event{Name: events.QuestUpdated, QuestID: q.ID, PlayerName: q.PlayerName, Branch: choice})
	logger.Info("Quest branched", "quest", q.ID, "player", q.PlayerName, "choice", choice)
	return nil
}

// SetTimer re-arms the failure timer on a running quest and refreshes the
// deadline counter.
func (e *Engine) SetTimer(id string, seconds int, label string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, err := e.load(id)
	if err != nil {
		return err
	}
	if q.State != quest.StateRunning {
		return nil
	}

	if seconds < 1 {
		seconds = 1
	}
	d := time.Duration(seconds) * time.Second
	e.cancelWatcher(q.ID, watcherTimer)
	e.addWatcher(q.ID, watcherTimer, newTimerWatcher(d, func() { e.failFromWatcher(q.ID, "timer") }))
	q.SetCounter("deadline", float64(time.Now().Add(d).UnixMilli()))

	if err := e.store.Save(q); err != nil {
		return fmt.Errorf("failed to persist quest %s: %w", id, err)
	}
	e.bus.Publish(events.Event{Name: events.QuestUpdated, QuestID: q.ID, PlayerName: q.PlayerName, Reason: label})
	logger.Info("Quest timer set", "quest", q.ID, "seconds", seconds, "label", label)
	return nil
}

// Succeed moves the quest to its success terminal state. No-op on terminal
// instances.
func (e *Engine) Succeed(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminate(id, quest.StateSuccess, "")
}

// Fail moves the quest to its failure terminal state with the given reason.
// No-op on terminal instances.
func (e *Engine) Fail(id, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminate(id, quest.StateFailure, reason)
}

// Close cancels every live watcher. Instances keep their persisted state.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for id := range e.watchers {
		e.cancelAllWatchers(id)
	}
}

// terminate writes a terminal state and drains the instance's watchers in
// the same critical section. Callers must hold the engine lock.
func (e *Engine) terminate(id string, state quest.State, reason string) error {
	q, err := e.load(id)
	if err != nil {
		return err
	}
	if q.State.IsTerminal() {
		return nil
	}

	q.State = state
	e.cancelAllWatchers(q.ID)

	if err := e.store.Save(q); err != nil {
		return fmt.Errorf("failed to persist quest %s: %w", id, err)
	}

	if state == quest.StateSuccess {
		e.bus.Publish(events.Event{Name: events.QuestSucceeded, QuestID: q.ID, PlayerName: q.PlayerName})
		logger.Info("Quest succeeded", "quest", q.ID, "player", q.PlayerName)
	} else {
		e.bus.Publish(events.Event{Name: events.QuestFailed, QuestID: q.ID, PlayerName: q.PlayerName, Reason: reason})
		logger.Info("Quest failed", "quest", q.ID, "player", q.PlayerName, "reason", reason)
	}
	return nil
}

// load fetches an instance for mutation. Callers must hold the engine lock.
func (e *Engine) load(id string) (*quest.Instance, error) {
	q, exists, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return q, nil
}
