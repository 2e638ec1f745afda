// Package atmosphere holds the single active conversation modifier and the
// one-shot flags that ride alongside it.
package atmosphere

import "strings"

const focusedSuccessBonus = 20

// Manager owns the current atmosphere and its one-shot flags.
// The zero value is a Neutral atmosphere with no pending flags.
type Manager struct {
	current Type

	nextSpeakFree          bool
	nextActionFreePatience bool
}

func NewManager() *Manager {
	return &Manager{current: Neutral}
}

func (m *Manager) Current() Type { return m.current }

// Set replaces the current atmosphere unconditionally.
func (m *Manager) Set(t Type) {
	m.current = t
}

// OnListenAction leaves the atmosphere as it is: it persists across LISTEN.
func (m *Manager) OnListenAction() {}

// ClearOnFailure drops any atmosphere after a failed card.
func (m *Manager) ClearOnFailure() {
	m.current = Neutral
}

// OnCardSuccess consumes atmospheres that only last for one success.
func (m *Manager) OnCardSuccess() {
	switch m.current {
	case Informed, Synchronized:
		m.current = Neutral
	}
}

func (m *Manager) ShouldAutoSucceed() bool      { return m.current == Informed }
func (m *Manager) ShouldDoubleNextEffect() bool { return m.current == Synchronized }
func (m *Manager) ShouldEndOnFailure() bool     { return m.current == Final }

func (m *Manager) FocusCapacityBonus() int {
	if m.current == Prepared {
		return 1
	}
	return 0
}

func (m *Manager) DrawCountModifier() int {
	switch m.current {
	case Receptive:
		return 1
	case Pressured:
		return -1
	}
	return 0
}

func (m *Manager) SuccessPercentageBonus() int {
	if m.current == Focused {
		return focusedSuccessBonus
	}
	return 0
}

// ShouldWaivePatienceCost reports whether this action costs no patience.
// A pending free-patience flag is consumed even when Patient is active.
func (m *Manager) ShouldWaivePatienceCost() bool {
	flag := m.nextActionFreePatience
	m.nextActionFreePatience = false
	return flag || m.current == Patient
}

func (m *Manager) ModifyFlowChange(delta int) int {
	return ModifyFlow(m.current, delta)
}

func (m *Manager) SetNextSpeakFree() { m.nextSpeakFree = true }

// IsNextSpeakFree returns true exactly once after SetNextSpeakFree.
func (m *Manager) IsNextSpeakFree() bool {
	free := m.nextSpeakFree
	m.nextSpeakFree = false
	return free
}

// PeekNextSpeakFree reads the flag without consuming it.
func (m *Manager) PeekNextSpeakFree() bool { return m.nextSpeakFree }

func (m *Manager) SetNextActionFreePatience() { m.nextActionFreePatience = true }

func (m *Manager) HasTemporaryEffects() bool {
	return m.current != Neutral || m.nextSpeakFree || m.nextActionFreePatience
}

// TemporaryEffectsDescription lists active effects for display, joined by "; ".
func (m *Manager) TemporaryEffectsDescription() string {
	parts := make([]string, 0, 3)
	if desc := describe(m.current); desc != "" {
		parts = append(parts, desc)
	}
	if m.nextSpeakFree {
		parts = append(parts, "next SPEAK costs no focus")
	}
	if m.nextActionFreePatience {
		parts = append(parts, "next action costs no patience")
	}
	return strings.Join(parts, "; ")
}

// Reset returns the manager to Neutral and clears every flag.
func (m *Manager) Reset() {
	m.current = Neutral
	m.nextSpeakFree = false
	m.nextActionFreePatience = false
}

func describe(t Type) string {
	switch t {
	case Prepared:
		return "Prepared: +1 focus capacity"
	case Informed:
		return "Informed: next card automatically succeeds"
	case Synchronized:
		return "Synchronized: next effect happens twice"
	case Receptive:
		return "Receptive: +1 card on LISTEN"
	case Pressured:
		return "Pressured: -1 card on LISTEN"
	case Patient:
		return "Patient: actions cost no patience"
	case Volatile:
		return "Volatile: flow changes +/-1"
	case Exposed:
		return "Exposed: flow changes doubled"
	case Final:
		return "Final: any failure ends the conversation"
	case Focused:
		return "Focused: +20% success"
	}
	return ""
}
