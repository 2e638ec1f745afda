// Package emotion models the NPC's receptiveness scale and the flow battery
// that moves an NPC along it.
package emotion

import "fmt"

// State is an ordered five-point scale; larger is more receptive.
type State int8

const (
	Desperate State = -2
	Tense     State = -1
	Neutral   State = 0
	Open      State = 1
	Connected State = 2
)

var StateDictionary = map[State]string{
	Desperate: "desperate",
	Tense:     "tense",
	Neutral:   "neutral",
	Open:      "open",
	Connected: "connected",
}

// States lists every state from lowest to highest.
var States = []State{Desperate, Tense, Neutral, Open, Connected}

func (s State) String() string {
	if name, ok := StateDictionary[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int8(s))
}

func (s State) IsValid() bool {
	return s >= Desperate && s <= Connected
}

// Up returns the next state up the scale, saturating at Connected.
func (s State) Up() State {
	if s >= Connected {
		return Connected
	}
	return s + 1
}

// Down returns the next state down the scale, saturating at Desperate.
func (s State) Down() State {
	if s <= Desperate {
		return Desperate
	}
	return s - 1
}

func ParseState(name string) (State, error) {
	for s, n := range StateDictionary {
		if n == name {
			return s, nil
		}
	}
	return Neutral, fmt.Errorf("unknown emotional state %q", name)
}

func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid emotional state %d", int8(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	parsed, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
