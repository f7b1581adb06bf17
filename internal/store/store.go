// Package store provides persistence for quest instances. The engine only
// sees the Store interface, so the in-memory implementation can be swapped
// for a durable SQL backend without engine changes.
package store

import (
	"github.com/lawnchairsociety/questbridge/internal/quest"
)

// Store persists quest instances. Implementations must return copies:
// mutating a returned instance never affects stored state without an
// explicit Save.
type Store interface {
	// Save writes the instance, replacing any existing record with the same id.
	Save(q *quest.Instance) error

	// Get returns a copy of the instance, or false if the id is unknown.
	Get(id string) (*quest.Instance, bool, error)

	// List returns copies of all stored instances.
	List() ([]*quest.Instance, error)

	// Close releases any resources held by the store.
	Close() error
}
