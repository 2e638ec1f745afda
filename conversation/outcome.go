package conversation

import "parley-lite/emotion"

// OutcomeKind 对话终局
type OutcomeKind byte

const (
	OutcomeNone              OutcomeKind = 0
	OutcomeSuccess           OutcomeKind = 1 // 目标牌成功打出
	OutcomeFailure           OutcomeKind = 2 // 情绪崩溃或效果终止
	OutcomePatienceExhausted OutcomeKind = 3 // 耐心耗尽
	OutcomeAbandoned         OutcomeKind = 4 // 玩家主动离开
)

var OutcomeKindDictionary = map[OutcomeKind]string{
	OutcomeNone:              "none",
	OutcomeSuccess:           "success",
	OutcomeFailure:           "failure",
	OutcomePatienceExhausted: "patience_exhausted",
	OutcomeAbandoned:         "abandoned",
}

func (k OutcomeKind) String() string {
	if name, ok := OutcomeKindDictionary[k]; ok {
		return name
	}
	return "unknown"
}

// Outcome is reported once the conversation ends. Applying it to the world is
// the caller's job.
type Outcome struct {
	Kind   OutcomeKind
	Reason string

	TotalRapport int
	Markers      []Marker

	FinalState emotion.State
	FinalFlow  int
	Turns      int

	// GoalCardID is set for OutcomeSuccess.
	GoalCardID string
}

func (o *Outcome) HasMarker(m Marker) bool {
	for _, got := range o.Markers {
		if got == m {
			return true
		}
	}
	return false
}

func (o *Outcome) clone() *Outcome {
	if o == nil {
		return nil
	}
	c := *o
	c.Markers = append([]Marker(nil), o.Markers...)
	return &c
}
