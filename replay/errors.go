package replay

import "fmt"

type ReplayError struct {
	StepIndex int32          `json:"step_index"`
	Reason    string         `json:"reason"`
	Message   string         `json:"message"`
	Expected  *ExpectedState `json:"expected,omitempty"`
}

// ExpectedState is what the engine would have accepted at the failing step.
type ExpectedState struct {
	Hand          []string `json:"hand,omitempty"`
	Focus         int      `json:"focus"`
	Patience      int      `json:"patience"`
	NextSpeakFree bool     `json:"next_speak_free,omitempty"`
	State         string   `json:"state,omitempty"`
}

func (e *ReplayError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("replay error(step=%d reason=%s): %s", e.StepIndex, e.Reason, e.Message)
}
