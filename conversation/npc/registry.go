package npc

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"parley-lite/card"
)

// PersonaRegistry holds all NPC persona definitions.
type PersonaRegistry struct {
	mu       sync.RWMutex
	personas map[string]*Persona
}

// NewRegistry creates an empty registry.
func NewRegistry() *PersonaRegistry {
	return &PersonaRegistry{
		personas: make(map[string]*Persona),
	}
}

// LoadFromFile loads NPC personas from a JSON file.
func (r *PersonaRegistry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read personas file: %w", err)
	}
	return r.LoadFromJSON(data)
}

// LoadFromJSON loads NPC personas from raw JSON bytes. Entries without an id
// are skipped; any other invalid entry fails the whole load.
func (r *PersonaRegistry) LoadFromJSON(data []byte) error {
	var list []*Persona
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse personas JSON: %w", err)
	}
	for _, p := range list {
		if p.ID == "" {
			continue
		}
		if err := p.validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range list {
		if p.ID == "" {
			continue
		}
		r.personas[p.ID] = p
	}
	return nil
}

// Get returns a persona by ID.
func (r *PersonaRegistry) Get(id string) *Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.personas[id]
}

// All returns every persona sorted by ID.
func (r *PersonaRegistry) All() []*Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByTier returns all personas of the given tier.
func (r *PersonaRegistry) ByTier(tier int) []*Persona {
	var out []*Persona
	for _, p := range r.All() {
		if p.Tier == tier {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the total number of registered personas.
func (r *PersonaRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.personas)
}

// CheckDecks verifies every persona's cards exist in catalog.
func (r *PersonaRegistry) CheckDecks(catalog *card.Catalog) error {
	for _, p := range r.All() {
		if _, err := catalog.Resolve(p.CardIDs()); err != nil {
			return fmt.Errorf("persona %s: %w", p.ID, err)
		}
	}
	return nil
}
