package npc

import (
	"fmt"

	"parley-lite/atmosphere"
	"parley-lite/emotion"
)

// Persona defines a named NPC the player can talk to.
type Persona struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
	Tier    int    `json:"tier"` // 1=major, 2=supporting, 3=background

	InitialState  emotion.State   `json:"initialState"`
	Atmosphere    atmosphere.Type `json:"atmosphere"`
	Patience      int             `json:"patience"`
	FocusCapacity int             `json:"focusCapacity"`

	Deck  []string `json:"deck"`  // conversation card ids
	Goals []string `json:"goals"` // goal card ids shuffled into the draw pile
}

func (p *Persona) validate() error {
	if p.ID == "" {
		return fmt.Errorf("persona id is required")
	}
	if p.Patience <= 0 {
		return fmt.Errorf("persona %s: patience must be > 0", p.ID)
	}
	if p.FocusCapacity < 0 {
		return fmt.Errorf("persona %s: focusCapacity must be >= 0", p.ID)
	}
	if len(p.Deck) == 0 {
		return fmt.Errorf("persona %s: deck is empty", p.ID)
	}
	return nil
}

// CardIDs returns the deck followed by the goals.
func (p *Persona) CardIDs() []string {
	out := make([]string, 0, len(p.Deck)+len(p.Goals))
	out = append(out, p.Deck...)
	return append(out, p.Goals...)
}
