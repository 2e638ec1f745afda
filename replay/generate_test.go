package replay

import (
	"encoding/base64"
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"parley-lite/card"
	"parley-lite/content"
)

func deckOf(t *testing.T, id string, n int) []card.Card {
	t.Helper()
	catalog, err := content.Catalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	c, ok := catalog.Get(id)
	if !ok {
		t.Fatalf("card %s missing from catalog", id)
	}
	out := make([]card.Card, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func baseSpec(t *testing.T) ConversationSpec {
	return ConversationSpec{
		NPCID:         "elena",
		InitialState:  "neutral",
		Patience:      10,
		FocusCapacity: 5,
		OpeningHand:   3,
		Deck:          deckOf(t, "warm_greeting", 10),
		RNG:           &RNGSpec{Seed: 42},
	}
}

func TestGenerateReplayTapeDeterministic(t *testing.T) {
	spec := baseSpec(t)
	spec.Actions = []ActionSpec{
		{Type: "SPEAK", Cards: []string{"warm_greeting"}},
		{Type: "listen"},
		{Type: "LEAVE"},
	}

	first, err := GenerateReplayTape(spec)
	if err != nil {
		t.Fatalf("GenerateReplayTape err: %v", err)
	}
	second, err := GenerateReplayTape(spec)
	if err != nil {
		t.Fatalf("GenerateReplayTape err: %v", err)
	}
	if len(first.Events) != len(second.Events) {
		t.Fatalf("event counts differ: %d vs %d", len(first.Events), len(second.Events))
	}
	for i := range first.Events {
		if first.Events[i].EnvelopeB64 != second.Events[i].EnvelopeB64 {
			t.Fatalf("event %d (%s) differs between runs", i, first.Events[i].Type)
		}
	}

	if first.ConversationID != defaultConversationID || first.NPCID != "elena" || first.TapeVersion != tapeVersion {
		t.Fatalf("unexpected tape header: %+v", first)
	}
	if first.Events[0].Type != "openingHand" || first.Events[1].Type != "snapshot" {
		t.Fatalf("unexpected leading events: %s, %s", first.Events[0].Type, first.Events[1].Type)
	}
	for i, e := range first.Events {
		if e.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, e.Seq)
		}
	}

	last := first.Events[len(first.Events)-1]
	if last.Type != "conversationEnd" {
		t.Fatalf("expected conversationEnd last, got %s", last.Type)
	}
	var outcome OutcomePayload
	if err := FromStruct(last.Value, &outcome); err != nil {
		t.Fatalf("FromStruct err: %v", err)
	}
	if outcome.Kind != "abandoned" {
		t.Fatalf("expected abandoned outcome, got %+v", outcome)
	}
}

func TestReplayEnvelopeDecodes(t *testing.T) {
	spec := baseSpec(t)
	spec.Actions = []ActionSpec{{Type: "LISTEN"}}
	tape, err := GenerateReplayTape(spec)
	if err != nil {
		t.Fatalf("GenerateReplayTape err: %v", err)
	}

	var turns int
	for _, e := range tape.Events {
		bin, err := base64.StdEncoding.DecodeString(e.EnvelopeB64)
		if err != nil {
			t.Fatalf("decode base64: %v", err)
		}
		env := &structpb.Struct{}
		if err := proto.Unmarshal(bin, env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if got := env.Fields["type"].GetStringValue(); got != e.Type {
			t.Fatalf("envelope type %q, event type %q", got, e.Type)
		}
		if got := env.Fields["conversationId"].GetStringValue(); got != defaultConversationID {
			t.Fatalf("unexpected conversation id %q", got)
		}
		if !proto.Equal(env.Fields["payload"].GetStructValue(), e.Value) {
			t.Fatalf("envelope payload differs from event value for %s", e.Type)
		}
		if e.Type == "turn" {
			turns++
			var tp TurnPayload
			if err := FromStruct(e.Value, &tp); err != nil {
				t.Fatalf("FromStruct err: %v", err)
			}
			if tp.Action != "LISTEN" || tp.PatienceSpent != 1 {
				t.Fatalf("unexpected turn payload: %+v", tp)
			}
		}
	}
	if turns != 1 {
		t.Fatalf("expected one turn event, got %d", turns)
	}

	wire := ToWireReplayTape(tape)
	if len(wire.Events) != len(tape.Events) || wire.ConversationID != tape.ConversationID {
		t.Fatalf("wire tape mismatch")
	}
}

func assertReplayError(t *testing.T, err error, step int32, reason string) *ReplayError {
	t.Helper()
	var re *ReplayError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReplayError, got %v", err)
	}
	if re.StepIndex != step || re.Reason != reason {
		t.Fatalf("expected step=%d reason=%s, got step=%d reason=%s (%s)", step, reason, re.StepIndex, re.Reason, re.Message)
	}
	return re
}

func TestGenerateReplayTapeRejectsBadSpec(t *testing.T) {
	spec := baseSpec(t)
	spec.Actions = []ActionSpec{{Type: "LISTEN"}}

	bad := spec
	bad.Patience = 0
	_, err := GenerateReplayTape(bad)
	assertReplayError(t, err, -1, "invalid_patience")

	bad = spec
	bad.InitialState = "furious"
	_, err = GenerateReplayTape(bad)
	assertReplayError(t, err, -1, "invalid_state")

	bad = spec
	bad.Actions = nil
	_, err = GenerateReplayTape(bad)
	assertReplayError(t, err, -1, "invalid_actions")

	bad = spec
	bad.Actions = []ActionSpec{{Type: "LISTEN"}, {Type: "SHOUT"}}
	_, err = GenerateReplayTape(bad)
	assertReplayError(t, err, 1, "invalid_action")

	bad = spec
	bad.Actions = []ActionSpec{{Type: "SPEAK"}}
	_, err = GenerateReplayTape(bad)
	assertReplayError(t, err, 0, "invalid_action")
}

func TestGenerateReplayTapeStepErrors(t *testing.T) {
	spec := baseSpec(t)
	spec.Actions = []ActionSpec{{Type: "SPEAK", Cards: []string{"deliver_letter"}}}
	_, err := GenerateReplayTape(spec)
	re := assertReplayError(t, err, 0, "card_not_in_hand")
	if re.Expected == nil || len(re.Expected.Hand) != 3 || re.Expected.Patience != 10 {
		t.Fatalf("unexpected expected state: %+v", re.Expected)
	}

	spec = baseSpec(t)
	spec.Actions = []ActionSpec{{Type: "LEAVE"}, {Type: "LISTEN"}}
	_, err = GenerateReplayTape(spec)
	assertReplayError(t, err, 1, "conversation_ended")

	spec = baseSpec(t)
	spec.FocusCapacity = 1
	spec.Deck = deckOf(t, "shared_memory", 6)
	spec.Actions = []ActionSpec{{Type: "SPEAK", Cards: []string{"shared_memory"}}}
	_, err = GenerateReplayTape(spec)
	assertReplayError(t, err, 0, "insufficient_focus")
}

func TestSeededCardsReachTheHand(t *testing.T) {
	spec := baseSpec(t)
	letter := deckOf(t, "make_a_promise", 1)[0]
	spec.Seeded = []SeedSpec{{Card: letter, ToHand: true}}
	spec.Actions = []ActionSpec{{Type: "SPEAK", Cards: []string{"make_a_promise"}}}

	tape, err := GenerateReplayTape(spec)
	if err != nil {
		t.Fatalf("GenerateReplayTape err: %v", err)
	}
	last := tape.Events[len(tape.Events)-1]
	var outcome OutcomePayload
	if err := FromStruct(last.Value, &outcome); err != nil {
		t.Fatalf("FromStruct err: %v", err)
	}
	if last.Type != "conversationEnd" || outcome.Kind != "success" || outcome.GoalCardID != "make_a_promise" {
		t.Fatalf("expected goal success, got %s %+v", last.Type, outcome)
	}
}
