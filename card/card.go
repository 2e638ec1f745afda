package card

import (
	"fmt"
	"slices"

	"parley-lite/atmosphere"
	"parley-lite/emotion"
)

// Card 一张对话牌的定义（作者数据），由外部加载和校验后交给引擎。
type Card struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        Type            `json:"type"`
	Persistence Persistence     `json:"persistence"`
	Difficulty  Difficulty      `json:"difficulty"`
	Focus       int             `json:"focus"`
	Success     SuccessType     `json:"success"`
	Failure     FailureType     `json:"failure"`
	Exhaust     ExhaustType     `json:"exhaust"`
	ValidStates []emotion.State `json:"validStates,omitempty"`

	// PatienceBonus is added on success for SuccessPatience cards.
	PatienceBonus int `json:"patienceBonus,omitempty"`
	// Atmosphere overrides the magnitude table for SuccessAtmospheric cards.
	Atmosphere atmosphere.Type `json:"atmosphere,omitempty"`
}

// IsGoal 目标牌（信件、承诺、负担）
func (c *Card) IsGoal() bool {
	return c.Type.IsGoal()
}

// AllowsState reports whether the card may be drawn while the NPC is in s.
// An empty ValidStates allows every state.
func (c *Card) AllowsState(s emotion.State) bool {
	return len(c.ValidStates) == 0 || slices.Contains(c.ValidStates, s)
}

func (c *Card) String() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Validate checks the fields the engine relies on.
func (c *Card) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("card id is required")
	}
	if c.Focus < 0 {
		return fmt.Errorf("card %s: focus must be >= 0", c.ID)
	}
	if _, ok := TypeDictionary[c.Type]; !ok {
		return fmt.Errorf("card %s: invalid type %d", c.ID, c.Type)
	}
	if _, ok := PersistenceDictionary[c.Persistence]; !ok {
		return fmt.Errorf("card %s: invalid persistence %d", c.ID, c.Persistence)
	}
	if _, ok := DifficultyDictionary[c.Difficulty]; !ok {
		return fmt.Errorf("card %s: invalid difficulty %d", c.ID, c.Difficulty)
	}
	for _, s := range c.ValidStates {
		if !s.IsValid() {
			return fmt.Errorf("card %s: invalid valid state %d", c.ID, s)
		}
	}
	if c.PatienceBonus < 0 {
		return fmt.Errorf("card %s: patience bonus must be >= 0", c.ID)
	}
	return nil
}

// Instance 一局对话中的一张具体的牌。UID 在同一局内唯一。
type Instance struct {
	UID uint64
	Card
}

func (in *Instance) String() string {
	return fmt.Sprintf("%s#%d", in.Card.String(), in.UID)
}
