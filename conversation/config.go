package conversation

import (
	"fmt"
	"math/rand/v2"

	"parley-lite/atmosphere"
	"parley-lite/emotion"
)

type Config struct {
	// NPC
	NPCID        string
	InitialState emotion.State
	Atmosphere   atmosphere.Type

	// Resources
	Patience      int
	FocusCapacity int

	// Optional: opening hand size (0 => Ruleset draw count for InitialState)
	OpeningHand int

	// Rules (nil => DefaultRuleset)
	Rules *Ruleset

	// Rand wins over Seed when set. Seed 0 => crypto seed.
	Rand *rand.Rand
	Seed int64
}

func (c Config) validate() error {
	if !c.InitialState.IsValid() {
		return fmt.Errorf("invalid initial state %d", c.InitialState)
	}
	if !c.Atmosphere.IsValid() {
		return fmt.Errorf("invalid atmosphere %d", c.Atmosphere)
	}
	if c.Patience <= 0 {
		return fmt.Errorf("Patience must be > 0")
	}
	if c.FocusCapacity < 0 {
		return fmt.Errorf("FocusCapacity must be >= 0")
	}
	if c.OpeningHand < 0 {
		return fmt.Errorf("OpeningHand must be >= 0")
	}
	return nil
}
