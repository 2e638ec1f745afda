package npc

import (
	"parley-lite/atmosphere"
	"parley-lite/conversation"
	"parley-lite/emotion"
)

// View is a read-only projection of the conversation visible to a Decider.
type View struct {
	State         emotion.State
	Flow          int
	Atmosphere    atmosphere.Type
	Patience      int
	Focus         int
	FocusCapacity int
	NextSpeakFree bool
	Hand          []conversation.CardSnapshot
	DrawCount     int
}

// ViewOf builds a View from a session snapshot.
func ViewOf(snap conversation.Snapshot) View {
	return View{
		State:         snap.State,
		Flow:          snap.Flow,
		Atmosphere:    snap.Atmosphere,
		Patience:      snap.Patience,
		Focus:         snap.Focus,
		FocusCapacity: snap.FocusCapacity,
		NextSpeakFree: snap.NextSpeakFree,
		Hand:          snap.Hand,
		DrawCount:     snap.DrawCount,
	}
}

// Decision is what a Decider returns. Cards is empty for LISTEN.
type Decision struct {
	Action conversation.ActionType
	Cards  []uint64
}

// Decider picks the player's next move when the autopilot is driving.
type Decider interface {
	// Decide is called when the conversation is waiting for the player.
	Decide(view View) Decision
	// Name returns a human-readable identifier for debugging.
	Name() string
}
