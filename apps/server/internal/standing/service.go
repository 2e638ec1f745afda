// Package standing tracks how each player stands with each NPC across
// conversations: tallies, best rapport, completed goals and trust.
package standing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parley-lite/conversation"
)

const (
	minTrust = -5
	maxTrust = 10

	// personas at or above this tier are always open
	openTier = 2
)

var ErrPersonaLocked = errors.New("persona is locked")

type Service interface {
	Close() error
	Get(ctx context.Context, playerID uint64, npcID string) (*Standing, error)
	List(ctx context.Context, playerID uint64) ([]Standing, error)
	// Apply folds a finished conversation into the player's standing with
	// npcID and returns the new standing.
	Apply(ctx context.Context, playerID uint64, npcID string, outcome *conversation.Outcome) (*Standing, error)
}

type Standing struct {
	PlayerID       uint64    `json:"player_id"`
	NPCID          string    `json:"npc_id"`
	Conversations  int       `json:"conversations"`
	Successes      int       `json:"successes"`
	Failures       int       `json:"failures"`
	Abandoned      int       `json:"abandoned"`
	BestRapport    int       `json:"best_rapport"`
	GoalsCompleted []string  `json:"goals_completed"`
	Trust          int       `json:"trust"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Mood is the state shift a player's trust buys at the start of the next
// conversation with the same NPC.
func Mood(trust int) int {
	switch {
	case trust >= 3:
		return 1
	case trust <= -3:
		return -1
	default:
		return 0
	}
}

// Unlocked reports whether a persona of the given tier may be opened.
// Tier 1 personas open once the player has succeeded with anyone.
func Unlocked(standings []Standing, tier int) bool {
	if tier >= openTier || tier <= 0 {
		return true
	}
	for _, s := range standings {
		if s.Successes > 0 {
			return true
		}
	}
	return false
}

func emptyStanding(playerID uint64, npcID string) *Standing {
	return &Standing{
		PlayerID:       playerID,
		NPCID:          npcID,
		GoalsCompleted: []string{},
	}
}

// apply mutates s in place.
func apply(s *Standing, outcome *conversation.Outcome, now time.Time) error {
	if outcome == nil || outcome.Kind == conversation.OutcomeNone {
		return fmt.Errorf("conversation has not ended")
	}
	s.Conversations++
	switch outcome.Kind {
	case conversation.OutcomeSuccess:
		s.Successes++
		s.Trust += 2
		if outcome.GoalCardID != "" && !contains(s.GoalsCompleted, outcome.GoalCardID) {
			s.GoalsCompleted = append(s.GoalsCompleted, outcome.GoalCardID)
		}
	case conversation.OutcomeFailure, conversation.OutcomePatienceExhausted:
		s.Failures++
		s.Trust--
	case conversation.OutcomeAbandoned:
		s.Abandoned++
	}
	s.Trust = max(minTrust, min(maxTrust, s.Trust))
	if outcome.TotalRapport > s.BestRapport {
		s.BestRapport = outcome.TotalRapport
	}
	s.UpdatedAt = now.UTC()
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
