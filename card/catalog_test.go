package card

import (
	"strings"
	"testing"

	"parley-lite/atmosphere"
	"parley-lite/emotion"
)

const sampleCatalog = `[
  {"id": "warm_greeting", "name": "Warm Greeting", "type": "conversation", "persistence": "thought",
   "difficulty": "easy", "focus": 1, "success": "rapport", "failure": "backfire", "exhaust": "none"},
  {"id": "deliver_letter", "type": "letter", "persistence": "goal", "difficulty": "very_hard",
   "focus": 3, "success": "advancing", "failure": "none", "exhaust": "none",
   "validStates": ["open", "connected"]},
  {"id": "set_the_mood", "type": "conversation", "persistence": "impulse", "difficulty": "medium",
   "focus": 2, "success": "atmospheric", "failure": "overreach", "exhaust": "regret", "atmosphere": "patient"}
]`

func TestCatalogLoadFromJSON(t *testing.T) {
	c := NewCatalog()
	if err := c.LoadFromJSON([]byte(sampleCatalog)); err != nil {
		t.Fatalf("LoadFromJSON err: %v", err)
	}
	if c.Count() != 3 {
		t.Fatalf("expected 3 cards, got %d", c.Count())
	}

	letter, ok := c.Get("deliver_letter")
	if !ok {
		t.Fatalf("deliver_letter missing")
	}
	if letter.Type != TypeLetter || letter.Persistence != PersistenceGoal || letter.Difficulty != DifficultyVeryHard {
		t.Fatalf("unexpected letter: %+v", letter)
	}
	if len(letter.ValidStates) != 2 || letter.ValidStates[0] != emotion.Open {
		t.Fatalf("unexpected valid states: %v", letter.ValidStates)
	}

	mood, _ := c.Get("set_the_mood")
	if mood.Atmosphere != atmosphere.Patient || mood.Exhaust != ExhaustRegret {
		t.Fatalf("unexpected atmospheric card: %+v", mood)
	}
}

func TestCatalogRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown enum": `[{"id":"x","type":"conversation","persistence":"forever","difficulty":"easy"}]`,
		"missing id":   `[{"type":"conversation","persistence":"thought","difficulty":"easy"}]`,
		"duplicate":    `[{"id":"x","difficulty":"easy"},{"id":"x","difficulty":"easy"}]`,
		"bad state":    `[{"id":"x","validStates":["ecstatic"]}]`,
	}
	for name, raw := range cases {
		c := NewCatalog()
		if err := c.LoadFromJSON([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if c.Count() != 0 {
			t.Fatalf("%s: failed load must not add cards", name)
		}
	}
}

func TestCatalogResolveSuggests(t *testing.T) {
	c := NewCatalog()
	if err := c.LoadFromJSON([]byte(sampleCatalog)); err != nil {
		t.Fatalf("LoadFromJSON err: %v", err)
	}

	_, err := c.Resolve([]string{"warm_greeting", "warm_greting"})
	if err == nil {
		t.Fatalf("expected unknown card error")
	}
	if !strings.Contains(err.Error(), `did you mean "warm_greeting"`) {
		t.Fatalf("expected suggestion, got %v", err)
	}

	if got := c.Suggest("zz"); got != "" {
		t.Fatalf("short queries should not be suggested, got %q", got)
	}
}
