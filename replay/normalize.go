package replay

import (
	"fmt"
	"strings"

	"parley-lite/atmosphere"
	"parley-lite/card"
	"parley-lite/conversation"
	"parley-lite/emotion"
)

const defaultSeed int64 = 1

type normalizedAction struct {
	action conversation.ActionType
	cards  []string
}

type normalizedSpec struct {
	npcID        string
	initialState emotion.State
	atmosphere   atmosphere.Type
	patience     int
	focus        int
	openingHand  int
	deck         []card.Card
	seeded       []SeedSpec
	actions      []normalizedAction
	seed         int64
}

func normalizeSpec(spec ConversationSpec) (normalizedSpec, error) {
	var out normalizedSpec
	out.npcID = strings.TrimSpace(spec.NPCID)
	out.patience = spec.Patience
	out.focus = spec.FocusCapacity
	out.openingHand = spec.OpeningHand
	out.seed = seedFromSpec(spec.RNG)

	state := strings.ToLower(strings.TrimSpace(spec.InitialState))
	if state == "" {
		state = emotion.Neutral.String()
	}
	s, err := emotion.ParseState(state)
	if err != nil {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_state", Message: err.Error()}
	}
	out.initialState = s

	atm := strings.ToLower(strings.TrimSpace(spec.Atmosphere))
	if atm == "" {
		atm = atmosphere.Neutral.String()
	}
	a, err := atmosphere.Parse(atm)
	if err != nil {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_atmosphere", Message: err.Error()}
	}
	out.atmosphere = a

	if out.patience <= 0 {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_patience", Message: "patience must be > 0"}
	}
	if out.focus < 0 || out.openingHand < 0 {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_resources", Message: "focus_capacity and opening_hand must be >= 0"}
	}

	for i := range spec.Deck {
		if err := spec.Deck[i].Validate(); err != nil {
			return out, &ReplayError{StepIndex: -1, Reason: "invalid_card", Message: fmt.Sprintf("deck[%d]: %v", i, err)}
		}
	}
	out.deck = append([]card.Card(nil), spec.Deck...)

	for i := range spec.Seeded {
		if err := spec.Seeded[i].Card.Validate(); err != nil {
			return out, &ReplayError{StepIndex: -1, Reason: "invalid_card", Message: fmt.Sprintf("seeded[%d]: %v", i, err)}
		}
	}
	out.seeded = append([]SeedSpec(nil), spec.Seeded...)

	if len(spec.Actions) == 0 {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_actions", Message: "at least one action is required"}
	}
	for i, a := range spec.Actions {
		action, err := parseActionName(a.Type)
		if err != nil {
			return out, &ReplayError{StepIndex: int32(i), Reason: "invalid_action", Message: err.Error()}
		}
		if action == conversation.ActionSpeak && len(a.Cards) == 0 {
			return out, &ReplayError{StepIndex: int32(i), Reason: "invalid_action", Message: "SPEAK needs at least one card"}
		}
		if action != conversation.ActionSpeak && len(a.Cards) > 0 {
			return out, &ReplayError{StepIndex: int32(i), Reason: "invalid_action", Message: fmt.Sprintf("%s takes no cards", action)}
		}
		out.actions = append(out.actions, normalizedAction{action: action, cards: a.Cards})
	}
	return out, nil
}

func parseActionName(raw string) (conversation.ActionType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SPEAK":
		return conversation.ActionSpeak, nil
	case "LISTEN":
		return conversation.ActionListen, nil
	case "LEAVE":
		return conversation.ActionLeave, nil
	default:
		return 0, fmt.Errorf("unsupported action type %q", raw)
	}
}

// resolveHandCards maps card ids to distinct instance UIDs in hand, in order.
func resolveHandCards(hand []conversation.CardSnapshot, ids []string) ([]uint64, error) {
	used := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		found := false
		for _, c := range hand {
			if _, taken := used[c.UID]; taken || c.ID != id {
				continue
			}
			used[c.UID] = struct{}{}
			out = append(out, c.UID)
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("card %q is not in hand", id)
		}
	}
	return out, nil
}

func seedFromSpec(rng *RNGSpec) int64 {
	if rng == nil || rng.Seed == 0 {
		return defaultSeed
	}
	return rng.Seed
}
