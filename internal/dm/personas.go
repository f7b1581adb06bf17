// Package dm contains the dungeon-master side of the bridge: the dialogue
// orchestrator, the clickable-choice chat publisher, the inbound choice
// parser and the tool-call dispatcher.
package dm

import (
	"fmt"
	"sync"
)

// Persona selects the DM's voice for the external text-generation layer
type Persona string

const (
	PersonaWiseCat   Persona = "wise_cat"
	PersonaSarcastic Persona = "sarcastic"
	PersonaHeroic    Persona = "heroic"
)

// PersonaConfig is the current persona and sampling temperature
type PersonaConfig struct {
	Persona     Persona `json:"persona"`
	Temperature float64 `json:"temperature"`
}

// Personas holds the mutable persona configuration. It lives on the service
// container and is shared by the orchestrator and the HTTP surface.
type Personas struct {
	mu      sync.RWMutex
	current PersonaConfig
}

// NewPersonas creates the persona holder with the default voice
func NewPersonas() *Personas {
	return &Personas{current: PersonaConfig{Persona: PersonaWiseCat, Temperature: 0.5}}
}

// Set updates the persona; a negative temperature keeps the current one
func (p *Personas) Set(persona Persona, temperature float64) error {
	switch persona {
	case PersonaWiseCat, PersonaSarcastic, PersonaHeroic:
	default:
		return fmt.Errorf("invalid persona: %s", persona)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.current.Persona = persona
	if temperature >= 0 {
		p.current.Temperature = temperature
	}
	return nil
}

// Get returns the current persona configuration
func (p *Personas) Get() PersonaConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}
