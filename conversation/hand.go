package conversation

import (
	"math/rand/v2"

	"parley-lite/atmosphere"
	"parley-lite/card"
	"parley-lite/emotion"
)

// SpeakResult 一次出牌在牌堆层面的结果
type SpeakResult struct {
	Played    *card.Instance
	Succeeded bool
	// Effects holds the played card's effect first, then one exhaust result
	// per swept Impulse card.
	Effects []EffectResult
	Swept   []*card.Instance
	Drawn   []*card.Instance
	// Continue is false when any effect ends the conversation.
	Continue bool
}

// ListenResult LISTEN 在牌堆层面的结果
type ListenResult struct {
	Swept    []*card.Instance
	Effects  []EffectResult
	Drawn    []*card.Instance
	Continue bool
}

// HandManager owns the four piles of one conversation. Every instance lives
// in exactly one pile; moves remove before they append.
type HandManager struct {
	rules    *Ruleset
	resolver *Resolver
	atm      *atmosphere.Manager
	rng      *rand.Rand

	// state gates goal cards on plain draws.
	state emotion.State

	nextUID uint64

	draw    card.Pile
	hand    card.Pile
	discard card.Pile
	exhaust card.Pile
}

func NewHandManager(rules *Ruleset, atm *atmosphere.Manager, rng *rand.Rand) *HandManager {
	if rules == nil {
		rules = DefaultRuleset()
	}
	if atm == nil {
		atm = atmosphere.NewManager()
	}
	if rng == nil {
		rng = NewRand(1)
	}
	return &HandManager{
		rules:    rules,
		resolver: NewResolver(rules),
		atm:      atm,
		rng:      rng,
	}
}

// SetState updates the emotional state used to gate goal cards.
func (h *HandManager) SetState(s emotion.State) { h.state = s }

func (h *HandManager) instantiate(c card.Card) *card.Instance {
	h.nextUID++
	return &card.Instance{UID: h.nextUID, Card: c}
}

// InitializeDeck replaces every pile with a freshly shuffled draw pile.
func (h *HandManager) InitializeDeck(cards []card.Card) {
	deck := make([]*card.Instance, 0, len(cards))
	for _, c := range cards {
		deck = append(deck, h.instantiate(c))
	}
	h.draw.Init(deck)
	h.draw.Shuffle(h.rng)
	h.hand.Init(nil)
	h.discard.Init(nil)
	h.exhaust.Init(nil)
}

// AddExternalCard injects a one-off card. Cards added to the draw pile land at
// a random position.
func (h *HandManager) AddExternalCard(c card.Card, toHand bool) *card.Instance {
	in := h.instantiate(c)
	if toHand {
		h.hand.Add(in)
		return in
	}
	h.draw.Add(in)
	if n := h.draw.Count(); n > 1 {
		j := h.rng.IntN(n)
		h.draw[n-1], h.draw[j] = h.draw[j], h.draw[n-1]
	}
	return in
}

// DrawCards moves up to n cards from the top of Draw into Hand. Goal cards not
// valid in the current state are skipped and stay in Draw.
func (h *HandManager) DrawCards(n int) []*card.Instance {
	if n <= 0 {
		return nil
	}
	drawn := make([]*card.Instance, 0, n)
	for i := h.draw.Count() - 1; i >= 0 && len(drawn) < n; i-- {
		in := h.draw[i]
		if !in.AllowsState(h.state) {
			continue
		}
		h.draw.Take(in.UID)
		h.hand.Add(in)
		drawn = append(drawn, in)
	}
	return drawn
}

// DrawFilteredByState draws up to count cards uniformly at random from the
// Draw cards valid in s whose focus is at least minFocus.
func (h *HandManager) DrawFilteredByState(count, minFocus int, s emotion.State) []*card.Instance {
	drawn := h.draw.TakeRandom(h.rng, count, func(in *card.Instance) bool {
		return in.AllowsState(s) && in.Focus >= minFocus
	})
	for _, in := range drawn {
		h.hand.Add(in)
	}
	return drawn
}

// OnSpeakAction plays one card and sweeps the remaining Impulse cards.
func (h *HandManager) OnSpeakAction(played uint64, succeeded bool) (SpeakResult, error) {
	res, err := h.resolvePlay(played, succeeded)
	if err != nil {
		return res, err
	}
	h.sweepImpulses(&res)
	return res, nil
}

// resolvePlay moves the played card out of Hand and applies the pile side of
// its effect: draws, discards and atmosphere changes. Numeric deltas are left
// in the result for the session.
func (h *HandManager) resolvePlay(uid uint64, succeeded bool) (SpeakResult, error) {
	in, ok := h.hand.Take(uid)
	if !ok {
		return SpeakResult{}, ErrCardNotInHand
	}
	res := SpeakResult{Played: in, Succeeded: succeeded, Continue: true}

	ctx := EffectContext{Atmosphere: h.atm, Hand: h.hand}
	var eff EffectResult
	if succeeded {
		eff = h.resolver.ProcessSuccessEffect(in, ctx)
		h.atm.OnCardSuccess()
		if eff.SetsAtmosphere {
			h.atm.Set(eff.Atmosphere)
		}
	} else {
		eff = h.resolver.ProcessFailureEffect(in, ctx)
	}

	if in.Persistence == card.PersistenceGoal {
		h.exhaust.Add(in)
	} else {
		h.discard.Add(in)
	}
	h.discardFromHand(eff.Discard)
	res.Drawn = append(res.Drawn, h.DrawCards(eff.CardsToDraw)...)

	res.Effects = append(res.Effects, eff)
	if eff.EndsConversation {
		res.Continue = false
	}
	return res, nil
}

// sweepImpulses clears every Impulse card left in Hand into Discard.
func (h *HandManager) sweepImpulses(res *SpeakResult) {
	swept, effects, drawn := h.sweep(card.PersistenceImpulse)
	res.Swept = append(res.Swept, swept...)
	res.Drawn = append(res.Drawn, drawn...)
	res.Effects = append(res.Effects, effects...)
	for i := range effects {
		if effects[i].EndsConversation {
			res.Continue = false
		}
	}
}

// OnListenAction sweeps Opening cards then draws for the NPC's state.
func (h *HandManager) OnListenAction(s emotion.State) ListenResult {
	h.atm.OnListenAction()
	h.state = s

	res := ListenResult{Continue: true}
	res.Swept, res.Effects, res.Drawn = h.sweep(card.PersistenceOpening)
	for i := range res.Effects {
		if res.Effects[i].EndsConversation {
			res.Continue = false
		}
	}
	n := h.rules.DrawCount(s, h.atm)
	res.Drawn = append(res.Drawn, h.DrawFilteredByState(n, 0, s)...)
	return res
}

func (h *HandManager) sweep(p card.Persistence) (swept []*card.Instance, effects []EffectResult, drawn []*card.Instance) {
	swept = h.hand.TakeWhere(func(in *card.Instance) bool { return in.Persistence == p })
	for _, in := range swept {
		h.discard.Add(in)
	}
	for _, in := range swept {
		eff := h.resolver.ProcessExhaustEffect(in, EffectContext{Atmosphere: h.atm, Hand: h.hand})
		drawn = append(drawn, h.DrawCards(eff.CardsToDraw)...)
		effects = append(effects, eff)
	}
	return swept, effects, drawn
}

func (h *HandManager) discardFromHand(cards []*card.Instance) {
	for _, in := range cards {
		if taken, ok := h.hand.Take(in.UID); ok {
			h.discard.Add(taken)
		}
	}
}

// CountFleetingCards counts Impulse and Opening cards in Hand.
func (h *HandManager) CountFleetingCards() int {
	n := 0
	for _, in := range h.hand {
		if in.Persistence.IsFleeting() {
			n++
		}
	}
	return n
}

func (h *HandManager) Hand() []*card.Instance {
	return append([]*card.Instance(nil), h.hand...)
}

func (h *HandManager) InHand(uid uint64) (*card.Instance, bool) {
	i := h.hand.IndexOf(uid)
	if i < 0 {
		return nil, false
	}
	return h.hand[i], true
}

func (h *HandManager) DrawCount() int    { return h.draw.Count() }
func (h *HandManager) HandCount() int    { return h.hand.Count() }
func (h *HandManager) DiscardCount() int { return h.discard.Count() }
func (h *HandManager) ExhaustCount() int { return h.exhaust.Count() }

// Discarded and Exhausted return copies, oldest first.
func (h *HandManager) Discarded() []*card.Instance {
	return append([]*card.Instance(nil), h.discard...)
}

func (h *HandManager) Exhausted() []*card.Instance {
	return append([]*card.Instance(nil), h.exhaust...)
}
