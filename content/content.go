// Package content embeds the default card catalog and NPC personas.
package content

import (
	_ "embed"

	"parley-lite/card"
)

//go:embed cards.json
var cardsJSON []byte

//go:embed personas.json
var personasJSON []byte

// CardsJSON returns the raw default card catalog.
func CardsJSON() []byte { return cardsJSON }

// PersonasJSON returns the raw default persona list.
func PersonasJSON() []byte { return personasJSON }

// Catalog parses the embedded card catalog. When path is non-empty the file
// is loaded on top, overriding cards with the same id.
func Catalog(path string) (*card.Catalog, error) {
	c := card.NewCatalog()
	if err := c.LoadFromJSON(cardsJSON); err != nil {
		return nil, err
	}
	if path != "" {
		if err := c.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	return c, nil
}
