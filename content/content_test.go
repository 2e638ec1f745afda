package content

import (
	"encoding/json"
	"testing"
)

func TestEmbeddedCatalogLoads(t *testing.T) {
	c, err := Catalog("")
	if err != nil {
		t.Fatalf("Catalog err: %v", err)
	}
	if c.Count() < 20 {
		t.Fatalf("expected a full catalog, got %d cards", c.Count())
	}
	letter, ok := c.Get("deliver_letter")
	if !ok || !letter.IsGoal() || len(letter.ValidStates) == 0 {
		t.Fatalf("deliver_letter should be a gated goal card: %+v", letter)
	}
}

func TestPersonaDecksReferenceKnownCards(t *testing.T) {
	c, err := Catalog("")
	if err != nil {
		t.Fatalf("Catalog err: %v", err)
	}
	var personas []struct {
		ID    string   `json:"id"`
		Deck  []string `json:"deck"`
		Goals []string `json:"goals"`
	}
	if err := json.Unmarshal(PersonasJSON(), &personas); err != nil {
		t.Fatalf("parse personas: %v", err)
	}
	if len(personas) == 0 {
		t.Fatalf("expected embedded personas")
	}
	for _, p := range personas {
		if _, err := c.Resolve(append(append([]string{}, p.Deck...), p.Goals...)); err != nil {
			t.Fatalf("persona %s: %v", p.ID, err)
		}
	}
}
