package card

import (
	"math/rand/v2"
	"testing"

	"parley-lite/emotion"
)

func instances(n int) []*Instance {
	out := make([]*Instance, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &Instance{UID: uint64(i), Card: Card{ID: "c", Focus: i}})
	}
	return out
}

func TestPilePopCardsDrawsWhatIsLeft(t *testing.T) {
	var p Pile
	p.Init(instances(3))

	got := p.PopCards(5)
	if len(got) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(got))
	}
	if got[0].UID != 3 {
		t.Fatalf("expected top card first, got %d", got[0].UID)
	}
	if p.Count() != 0 {
		t.Fatalf("expected empty pile, got %d", p.Count())
	}
	if p.PopCard() != nil {
		t.Fatalf("expected nil from empty pile")
	}
}

func TestPileTakeKeepsOrder(t *testing.T) {
	var p Pile
	p.Init(instances(4))

	c, ok := p.Take(2)
	if !ok || c.UID != 2 {
		t.Fatalf("take failed: %v %v", c, ok)
	}
	want := []uint64{1, 3, 4}
	got := p.UIDs()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}
	if _, ok := p.Take(2); ok {
		t.Fatalf("second take of same uid must fail")
	}
}

func TestPileTakeWhere(t *testing.T) {
	var p Pile
	p.Init(instances(5))

	taken := p.TakeWhere(func(in *Instance) bool { return in.Focus >= 3 })
	if len(taken) != 3 || p.Count() != 2 {
		t.Fatalf("expected 3 taken / 2 kept, got %d / %d", len(taken), p.Count())
	}
	for _, in := range p {
		if in.Focus >= 3 {
			t.Fatalf("card %d should have been taken", in.UID)
		}
	}
}

func TestPileTakeRandomRespectsEligibility(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	var p Pile
	p.Init(instances(10))

	taken := p.TakeRandom(rng, 20, func(in *Instance) bool { return in.UID%2 == 0 })
	if len(taken) != 5 {
		t.Fatalf("expected all 5 eligible cards, got %d", len(taken))
	}
	seen := map[uint64]bool{}
	for _, in := range taken {
		if in.UID%2 != 0 {
			t.Fatalf("ineligible card %d drawn", in.UID)
		}
		if seen[in.UID] {
			t.Fatalf("card %d drawn twice", in.UID)
		}
		seen[in.UID] = true
	}
	if p.Count() != 5 {
		t.Fatalf("expected 5 left, got %d", p.Count())
	}
}

func TestCardAllowsState(t *testing.T) {
	open := Card{ID: "any"}
	if !open.AllowsState(emotion.Desperate) {
		t.Fatalf("empty valid states should allow everything")
	}
	goal := Card{ID: "letter", Type: TypeLetter, ValidStates: []emotion.State{emotion.Open, emotion.Connected}}
	if goal.AllowsState(emotion.Neutral) {
		t.Fatalf("letter should not be allowed in neutral")
	}
	if !goal.AllowsState(emotion.Connected) || !goal.IsGoal() {
		t.Fatalf("letter should be a goal allowed in connected")
	}
}
