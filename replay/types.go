package replay

import (
	"google.golang.org/protobuf/types/known/structpb"

	"parley-lite/card"
)

// ConversationSpec is a scripted conversation: the NPC's starting position,
// the deck and the player's actions in order.
type ConversationSpec struct {
	NPCID         string       `json:"npc_id"`
	InitialState  string       `json:"initial_state"`
	Atmosphere    string       `json:"atmosphere,omitempty"`
	Patience      int          `json:"patience"`
	FocusCapacity int          `json:"focus_capacity"`
	OpeningHand   int          `json:"opening_hand,omitempty"`
	Deck          []card.Card  `json:"deck"`
	Seeded        []SeedSpec   `json:"seeded,omitempty"`
	Actions       []ActionSpec `json:"actions"`
	RNG           *RNGSpec     `json:"rng,omitempty"`
}

// SeedSpec is a one-off card injected before the first action.
type SeedSpec struct {
	Card   card.Card `json:"card"`
	ToHand bool      `json:"to_hand,omitempty"`
}

// ActionSpec is one player move. Cards name card ids in hand; a repeated id
// selects a second copy.
type ActionSpec struct {
	Type  string   `json:"type"`
	Cards []string `json:"cards,omitempty"`
}

type RNGSpec struct {
	Seed int64 `json:"seed"`
}

type ReplayTape struct {
	TapeVersion    int           `json:"tape_version"`
	ConversationID string        `json:"conversation_id"`
	NPCID          string        `json:"npc_id"`
	Events         []ReplayEvent `json:"events"`
}

type ReplayEvent struct {
	Type        string           `json:"type"`
	Seq         uint64           `json:"seq"`
	Value       *structpb.Struct `json:"value,omitempty"`
	EnvelopeB64 string           `json:"envelope_b64,omitempty"`
}
