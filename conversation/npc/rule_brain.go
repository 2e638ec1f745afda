package npc

import (
	"math/rand/v2"
	"sort"

	"parley-lite/card"
	"parley-lite/conversation"
	"parley-lite/emotion"
)

// PlayStyle defines the tunable parameters for a RuleBrain.
type PlayStyle struct {
	Name       string  `json:"name"`
	Boldness   float64 `json:"boldness"`   // 0.0–1.0: willingness to chain cards and take long odds
	Caution    float64 `json:"caution"`    // 0.0–1.0: minimum odds before speaking instead of listening
	Randomness float64 `json:"randomness"` // 0.0–1.0: decision noise
}

var (
	CautiousStyle = PlayStyle{Name: "cautious", Boldness: 0.2, Caution: 0.7, Randomness: 0.1}
	BalancedStyle = PlayStyle{Name: "balanced", Boldness: 0.5, Caution: 0.45, Randomness: 0.2}
	BoldStyle     = PlayStyle{Name: "bold", Boldness: 0.9, Caution: 0.15, Randomness: 0.3}
)

// Styles by name.
var Styles = map[string]PlayStyle{
	CautiousStyle.Name: CautiousStyle,
	BalancedStyle.Name: BalancedStyle,
	BoldStyle.Name:     BoldStyle,
}

// RuleBrain picks moves from a PlayStyle and the visible hand.
type RuleBrain struct {
	Style PlayStyle
	rng   *rand.Rand
}

// NewRuleBrain creates a RuleBrain with its own deterministic rng.
func NewRuleBrain(style PlayStyle, seed int64) *RuleBrain {
	return &RuleBrain{
		Style: style,
		rng:   conversation.NewRand(seed),
	}
}

func (b *RuleBrain) Name() string { return b.Style.Name }

type scoredCard struct {
	conversation.CardSnapshot
	score float64
}

// Decide implements Decider.
func (b *RuleBrain) Decide(view View) Decision {
	s := b.Style
	caution := clamp01(s.Caution + (b.rng.Float64()-0.5)*s.Randomness*0.4)
	boldness := clamp01(s.Boldness + (b.rng.Float64()-0.5)*s.Randomness*0.4)

	listen := Decision{Action: conversation.ActionListen}

	// A playable goal card ends the conversation in success; always take it.
	for _, c := range view.Hand {
		if c.Playable && c.Type.IsGoal() {
			return Decision{Action: conversation.ActionSpeak, Cards: []uint64{c.UID}}
		}
	}

	var options []scoredCard
	for _, c := range view.Hand {
		if !c.Playable {
			continue
		}
		options = append(options, scoredCard{CardSnapshot: c, score: b.score(c, view, boldness)})
	}
	if len(options) == 0 {
		return listen
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].score > options[j].score })

	best := options[0]
	odds := float64(best.SuccessPercent) / 100
	// Low odds: listen for a better hand unless patience is nearly gone.
	if odds < caution*0.8 && view.Patience > 2 && view.DrawCount > 0 {
		return listen
	}

	picked := []uint64{best.UID}
	if view.NextSpeakFree {
		return Decision{Action: conversation.ActionSpeak, Cards: picked}
	}
	budget := view.Focus - best.Focus
	limit := 1 + int(boldness*2)
	for _, c := range options[1:] {
		if len(picked) >= limit {
			break
		}
		if c.Focus > budget || float64(c.SuccessPercent)/100 < caution {
			continue
		}
		picked = append(picked, c.UID)
		budget -= c.Focus
	}
	return Decision{Action: conversation.ActionSpeak, Cards: picked}
}

// score is expected usefulness: odds weighted by how much the card moves the
// conversation, plus noise.
func (b *RuleBrain) score(c conversation.CardSnapshot, view View, boldness float64) float64 {
	odds := float64(c.SuccessPercent) / 100
	weight := 1.0
	switch {
	case c.Persistence == card.PersistenceImpulse:
		// Impulses leave after this SPEAK anyway.
		weight += 0.3
	case c.Persistence == card.PersistenceOpening:
		weight += 0.15
	}
	if view.State <= emotion.Tense {
		// upset NPC: favor safe cards
		weight += (1 - boldness) * odds
	}
	weight += boldness * float64(c.Difficulty) * 0.25
	return odds*weight + (b.rng.Float64()-0.5)*b.Style.Randomness*0.2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
