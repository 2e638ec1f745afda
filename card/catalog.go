package card

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// Catalog holds validated card definitions keyed by ID.
type Catalog struct {
	mu    sync.RWMutex
	cards map[string]Card
}

func NewCatalog() *Catalog {
	return &Catalog{cards: make(map[string]Card)}
}

// LoadFromFile loads card definitions from a JSON array file.
func (c *Catalog) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read card catalog: %w", err)
	}
	return c.LoadFromJSON(data)
}

// LoadFromJSON validates every card before adding any, so a bad file leaves
// the catalog untouched.
func (c *Catalog) LoadFromJSON(data []byte) error {
	var list []Card
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse card catalog JSON: %w", err)
	}
	seen := make(map[string]struct{}, len(list))
	for i := range list {
		if err := list[i].Validate(); err != nil {
			return fmt.Errorf("card %d: %w", i, err)
		}
		if _, dup := seen[list[i].ID]; dup {
			return fmt.Errorf("duplicate card id %q", list[i].ID)
		}
		seen[list[i].ID] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, def := range list {
		c.cards[def.ID] = def
	}
	return nil
}

// Add registers a single card definition.
func (c *Catalog) Add(def Card) error {
	if err := def.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards[def.ID] = def
	return nil
}

func (c *Catalog) Get(id string) (Card, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.cards[id]
	return def, ok
}

// Resolve returns definitions for ids in order, failing on the first unknown
// id with a suggestion when one is close enough.
func (c *Catalog) Resolve(ids []string) ([]Card, error) {
	out := make([]Card, 0, len(ids))
	for _, id := range ids {
		def, ok := c.Get(id)
		if !ok {
			if alt := c.Suggest(id); alt != "" {
				return nil, fmt.Errorf("unknown card %q (did you mean %q?)", id, alt)
			}
			return nil, fmt.Errorf("unknown card %q", id)
		}
		out = append(out, def)
	}
	return out, nil
}

// Suggest returns the closest known card id to query, or "" when nothing is
// within edit distance.
func (c *Catalog) Suggest(query string) string {
	query = strings.ToLower(strings.TrimSpace(query))
	if len(query) < 3 {
		return ""
	}
	best := ""
	bestDist := -1
	for _, id := range c.IDs() {
		dist := levenshtein.ComputeDistance(query, strings.ToLower(id))
		if dist > editLimit(len(id)) {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = id, dist
		}
	}
	return best
}

// IDs returns every card id, sorted.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.cards))
	for id := range c.cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cards)
}

func editLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
