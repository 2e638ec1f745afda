package conversation

import (
	"parley-lite/atmosphere"
	"parley-lite/card"
	"parley-lite/emotion"
)

type CardSnapshot struct {
	UID            uint64
	ID             string
	Name           string
	Type           card.Type
	Persistence    card.Persistence
	Difficulty     card.Difficulty
	Focus          int
	SuccessPercent int
	Playable       bool
}

type Snapshot struct {
	ID    string
	NPCID string
	Turn  int

	Started bool
	Ended   bool

	Flow        int
	FlowDisplay string
	State       emotion.State
	Warning     string

	Atmosphere        atmosphere.Type
	AtmosphereEffects string
	NextSpeakFree     bool

	Patience      int
	Focus         int
	FocusCapacity int

	Hand          []CardSnapshot
	DrawCount     int
	DiscardCount  int
	ExhaustCount  int
	FleetingCount int

	TotalRapport int
	Outcome      *Outcome
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                s.id,
		NPCID:             s.cfg.NPCID,
		Turn:              s.turn,
		Started:           s.started,
		Ended:             s.ended,
		Flow:              s.flow.Flow(),
		FlowDisplay:       s.flow.CompactDisplay(),
		State:             s.flow.State(),
		Warning:           s.flow.TransitionWarning(),
		Atmosphere:        s.atm.Current(),
		AtmosphereEffects: s.atm.TemporaryEffectsDescription(),
		NextSpeakFree:     s.atm.PeekNextSpeakFree(),
		Patience:          s.patience,
		Focus:             s.focus,
		FocusCapacity:     s.focusCapacity(),
		DrawCount:         s.hand.DrawCount(),
		DiscardCount:      s.hand.DiscardCount(),
		ExhaustCount:      s.hand.ExhaustCount(),
		FleetingCount:     s.hand.CountFleetingCards(),
		TotalRapport:      s.totalRapport,
		Outcome:           s.outcome.clone(),
	}

	for _, in := range s.hand.Hand() {
		snap.Hand = append(snap.Hand, CardSnapshot{
			UID:            in.UID,
			ID:             in.ID,
			Name:           in.Card.String(),
			Type:           in.Type,
			Persistence:    in.Persistence,
			Difficulty:     in.Difficulty,
			Focus:          in.Focus,
			SuccessPercent: s.resolver.CalculateSuccessPercentage(&in.Card, s.atm),
			Playable:       !s.ended && (snap.NextSpeakFree || in.Focus <= s.focus),
		})
	}
	return snap
}
