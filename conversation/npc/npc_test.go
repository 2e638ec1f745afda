package npc

import (
	"testing"

	"parley-lite/card"
	"parley-lite/content"
	"parley-lite/conversation"
	"parley-lite/emotion"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	reg := NewRegistry()
	if err := reg.LoadFromJSON(content.PersonasJSON()); err != nil {
		t.Fatalf("load personas: %v", err)
	}
	catalog, err := content.Catalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if err := reg.CheckDecks(catalog); err != nil {
		t.Fatalf("CheckDecks: %v", err)
	}
	return NewManager(reg, catalog, nil)
}

func TestRegistryLoadsPersonas(t *testing.T) {
	reg := NewRegistry()
	if err := reg.LoadFromJSON(content.PersonasJSON()); err != nil {
		t.Fatalf("LoadFromJSON err: %v", err)
	}
	if reg.Count() != 4 {
		t.Fatalf("expected 4 personas, got %d", reg.Count())
	}
	elena := reg.Get("elena")
	if elena == nil || elena.InitialState != emotion.Tense || len(elena.Goals) != 1 {
		t.Fatalf("unexpected elena: %+v", elena)
	}
	if got := len(reg.ByTier(1)); got != 2 {
		t.Fatalf("expected 2 tier-1 personas, got %d", got)
	}
	all := reg.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].ID > all[i].ID {
			t.Fatalf("All should be sorted by id")
		}
	}
}

func TestRegistryRejectsInvalidPersona(t *testing.T) {
	reg := NewRegistry()
	err := reg.LoadFromJSON([]byte(`[{"id":"ghost","patience":0,"deck":["small_talk"]}]`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if reg.Count() != 0 {
		t.Fatalf("failed load must not register personas")
	}
}

func TestManagerOpenAndAutoplayToTheEnd(t *testing.T) {
	m := newTestManager(t)
	conv, err := m.Open("marcus", OpenOptions{Seed: 77, Style: BalancedStyle})
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if m.OpenCount() != 1 || m.Get(conv.Session.ID()) != conv {
		t.Fatalf("conversation not tracked")
	}
	snap := conv.Session.Snapshot()
	if snap.NPCID != "marcus" || snap.Patience != 7 || !snap.Started {
		t.Fatalf("unexpected opening snapshot: %+v", snap)
	}
	if len(conv.Opening) == 0 {
		t.Fatalf("expected an opening hand")
	}

	for i := 0; i < 100 && !conv.Session.Ended(); i++ {
		if _, _, err := m.Autoplay(conv.Session.ID()); err != nil {
			t.Fatalf("Autoplay err: %v", err)
		}
	}
	if !conv.Session.Ended() {
		t.Fatalf("autoplay should finish the conversation")
	}
	if conv.Session.Outcome() == nil {
		t.Fatalf("expected an outcome")
	}

	m.Close(conv.Session.ID())
	if m.OpenCount() != 0 {
		t.Fatalf("expected conversation closed")
	}
}

func TestManagerOpenUnknownPersona(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Open("nobody", OpenOptions{Seed: 1}); err == nil {
		t.Fatalf("expected unknown persona error")
	}
}

func hand(cards ...conversation.CardSnapshot) View {
	return View{State: emotion.Neutral, Patience: 8, Focus: 5, FocusCapacity: 5, DrawCount: 10, Hand: cards}
}

func TestRuleBrainTakesPlayableGoal(t *testing.T) {
	brain := NewRuleBrain(CautiousStyle, 1)
	view := hand(
		conversation.CardSnapshot{UID: 1, Type: card.TypeConversation, SuccessPercent: 85, Focus: 1, Playable: true},
		conversation.CardSnapshot{UID: 2, Type: card.TypeLetter, SuccessPercent: 100, Focus: 3, Playable: true},
	)
	d := brain.Decide(view)
	if d.Action != conversation.ActionSpeak || len(d.Cards) != 1 || d.Cards[0] != 2 {
		t.Fatalf("expected to play the letter, got %+v", d)
	}
}

func TestRuleBrainListensWithoutPlayableCards(t *testing.T) {
	brain := NewRuleBrain(BoldStyle, 2)
	view := hand(conversation.CardSnapshot{UID: 1, SuccessPercent: 70, Focus: 9, Playable: false})
	if d := brain.Decide(view); d.Action != conversation.ActionListen {
		t.Fatalf("expected listen, got %+v", d)
	}
	if d := brain.Decide(hand()); d.Action != conversation.ActionListen {
		t.Fatalf("expected listen on empty hand, got %+v", d)
	}
}

func TestCautiousBrainWaitsForOdds(t *testing.T) {
	brain := NewRuleBrain(PlayStyle{Name: "strict", Caution: 0.9}, 3)
	view := hand(conversation.CardSnapshot{UID: 1, SuccessPercent: 15, Difficulty: card.DifficultyVeryHard, Focus: 2, Playable: true})

	if d := brain.Decide(view); d.Action != conversation.ActionListen {
		t.Fatalf("cautious brain should listen on 15%% odds, got %+v", d)
	}
	view.Patience = 1
	if d := brain.Decide(view); d.Action != conversation.ActionSpeak {
		t.Fatalf("with no patience left it should speak, got %+v", d)
	}
}

func TestBoldBrainChainsCardsWithinFocus(t *testing.T) {
	brain := NewRuleBrain(PlayStyle{Name: "all_in", Boldness: 1}, 4)
	view := hand(
		conversation.CardSnapshot{UID: 1, SuccessPercent: 85, Focus: 2, Playable: true},
		conversation.CardSnapshot{UID: 2, SuccessPercent: 70, Focus: 2, Playable: true},
		conversation.CardSnapshot{UID: 3, SuccessPercent: 70, Focus: 2, Playable: true},
	)
	d := brain.Decide(view)
	if d.Action != conversation.ActionSpeak || len(d.Cards) != 2 {
		t.Fatalf("expected two cards within 5 focus, got %+v", d)
	}
}

func TestOpenAppliesMoodShift(t *testing.T) {
	m := newTestManager(t)
	warm, err := m.Open("elena", OpenOptions{Seed: 4, Mood: 2})
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if got := warm.Session.Snapshot().State; got != emotion.Open {
		t.Fatalf("tense shifted up twice should be open, got %s", got)
	}
	cold, err := m.Open("elena", OpenOptions{Seed: 4, Mood: -5})
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if got := cold.Session.Snapshot().State; got != emotion.Desperate {
		t.Fatalf("shift should clamp at desperate, got %s", got)
	}
}
