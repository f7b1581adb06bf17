// Package events provides the publish/subscribe channel the quest engine
// emits lifecycle events onto. The bus is constructed once, injected into
// the engine, and drained at shutdown; there is no global emitter.
package events

import (
	"sync"
	"time"
)

// Event names emitted by the quest engine
const (
	QuestStarted   = "quest_started"
	QuestSucceeded = "quest_succeeded"
	QuestFailed    = "quest_failed"
	QuestUpdated   = "quest_updated"
)

// Event is a single quest lifecycle notification
type Event struct {
	Name       string    `json:"name"`
	QuestID    string    `json:"id"`
	PlayerName string    `json:"playerName,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Branch     string    `json:"branch,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Bus fans events out to subscribers
type Bus interface {
	// Publish delivers the event to every current subscriber.
	Publish(ev Event)

	// Subscribe registers a handler and returns a function that removes it.
	// Handlers run synchronously on the publisher's goroutine and must not block.
	Subscribe(fn func(Event)) (unsubscribe func())

	// Close removes all subscribers; subsequent publishes are dropped.
	Close()
}

// MemoryBus is the in-process Bus implementation
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
	closed bool
}

// NewMemoryBus creates a bus with no subscribers
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]func(Event))}
}

// Publish delivers the event to every current subscriber
func (b *MemoryBus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Subscribe registers a handler and returns its removal function
func (b *MemoryBus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Close drops all subscribers
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[int]func(Event))
}
