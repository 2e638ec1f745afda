package emotion

import (
	"fmt"

	"parley-lite/atmosphere"
)

const (
	MaxFlow = 3
	MinFlow = -3
)

// FlowResult describes what a single ApplyFlowChange did.
type FlowResult struct {
	AppliedDelta     int // delta after the atmosphere modifier
	PreviousState    State
	NewState         State
	StateChanged     bool
	ConversationEnds bool
}

// FlowBattery accumulates signed flow and moves the state one step whenever
// the accumulator hits an extreme.
type FlowBattery struct {
	flow  int
	state State
}

func NewFlowBattery(initial State) *FlowBattery {
	if !initial.IsValid() {
		initial = Neutral
	}
	return &FlowBattery{state: initial}
}

func (b *FlowBattery) Flow() int     { return b.flow }
func (b *FlowBattery) State() State { return b.state }

// ApplyFlowChange adds delta (after the atmosphere's modifier) and resolves
// any transition. Flow resets to 0 only when the state actually moves.
func (b *FlowBattery) ApplyFlowChange(delta int, atm atmosphere.Type) FlowResult {
	applied := atmosphere.ModifyFlow(atm, delta)
	res := FlowResult{
		AppliedDelta:  applied,
		PreviousState: b.state,
		NewState:      b.state,
	}

	b.flow = clampFlow(b.flow + applied)

	switch {
	case b.flow == MaxFlow && b.state != Connected:
		b.state = b.state.Up()
		b.flow = 0
		res.StateChanged = true
	case b.flow == MinFlow && b.state == Desperate:
		res.ConversationEnds = true
	case b.flow == MinFlow:
		b.state = b.state.Down()
		b.flow = 0
		res.StateChanged = true
	}

	res.NewState = b.state
	return res
}

// ResetToZero clears the accumulator without touching the state.
func (b *FlowBattery) ResetToZero() {
	b.flow = 0
}

// TransitionWarning returns a player-facing hint when one more push would
// move the state or end the conversation, or "" otherwise.
func (b *FlowBattery) TransitionWarning() string {
	switch b.flow {
	case MaxFlow - 1:
		if b.state == Connected {
			return ""
		}
		return fmt.Sprintf("One more positive push and they become %s", b.state.Up())
	case MinFlow + 1:
		if b.state == Desperate {
			return "One more negative push and the conversation ends"
		}
		return fmt.Sprintf("One more negative push and they become %s", b.state.Down())
	}
	return ""
}

// CompactDisplay formats flow as "0", "+n" or "-n".
func (b *FlowBattery) CompactDisplay() string {
	if b.flow > 0 {
		return fmt.Sprintf("+%d", b.flow)
	}
	return fmt.Sprintf("%d", b.flow)
}

func clampFlow(v int) int {
	if v > MaxFlow {
		return MaxFlow
	}
	if v < MinFlow {
		return MinFlow
	}
	return v
}
