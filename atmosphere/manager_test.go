package atmosphere

import "testing"

func TestInformedAutoSucceedsOnce(t *testing.T) {
	m := NewManager()
	m.Set(Informed)
	if !m.ShouldAutoSucceed() {
		t.Fatalf("expected Informed to auto-succeed")
	}

	m.OnCardSuccess()
	if m.ShouldAutoSucceed() {
		t.Fatalf("expected auto-succeed consumed after success")
	}
	if m.Current() != Neutral {
		t.Fatalf("expected Neutral after success, got %s", m.Current())
	}
}

func TestSuccessKeepsPersistentAtmospheres(t *testing.T) {
	for _, typ := range []Type{Prepared, Focused, Patient, Receptive, Volatile} {
		m := NewManager()
		m.Set(typ)
		m.OnCardSuccess()
		if m.Current() != typ {
			t.Fatalf("%s should persist through success, got %s", typ, m.Current())
		}
	}

	m := NewManager()
	m.Set(Synchronized)
	if !m.ShouldDoubleNextEffect() {
		t.Fatalf("expected Synchronized to double next effect")
	}
	m.OnCardSuccess()
	if m.Current() != Neutral {
		t.Fatalf("expected Synchronized consumed by success, got %s", m.Current())
	}
}

func TestFailureClearsAnyAtmosphere(t *testing.T) {
	for typ := range TypeDictionary {
		m := NewManager()
		m.Set(typ)
		m.ClearOnFailure()
		if m.Current() != Neutral {
			t.Fatalf("%s: expected Neutral after failure, got %s", typ, m.Current())
		}
	}
}

func TestListenKeepsAtmosphere(t *testing.T) {
	m := NewManager()
	m.Set(Pressured)
	m.OnListenAction()
	if m.Current() != Pressured {
		t.Fatalf("expected atmosphere to survive LISTEN, got %s", m.Current())
	}
}

func TestSetDiscardsPreviousAtmosphere(t *testing.T) {
	m := NewManager()
	m.Set(Informed)
	m.Set(Focused)
	if m.ShouldAutoSucceed() {
		t.Fatalf("Informed should be gone after Set(Focused)")
	}
	if got := m.SuccessPercentageBonus(); got != 20 {
		t.Fatalf("expected +20 success bonus, got %d", got)
	}
}

func TestQueries(t *testing.T) {
	m := NewManager()
	if m.FocusCapacityBonus() != 0 || m.DrawCountModifier() != 0 || m.SuccessPercentageBonus() != 0 {
		t.Fatalf("neutral atmosphere should have no modifiers")
	}
	m.Set(Prepared)
	if m.FocusCapacityBonus() != 1 {
		t.Fatalf("expected Prepared focus bonus 1")
	}
	m.Set(Receptive)
	if m.DrawCountModifier() != 1 {
		t.Fatalf("expected Receptive draw +1")
	}
	m.Set(Pressured)
	if m.DrawCountModifier() != -1 {
		t.Fatalf("expected Pressured draw -1")
	}
	m.Set(Final)
	if !m.ShouldEndOnFailure() {
		t.Fatalf("expected Final to end on failure")
	}
}

func TestOneShotFlagsConsumeOnRead(t *testing.T) {
	m := NewManager()
	if m.IsNextSpeakFree() {
		t.Fatalf("flag should start false")
	}
	m.SetNextSpeakFree()
	if !m.HasTemporaryEffects() {
		t.Fatalf("pending flag should count as a temporary effect")
	}
	if !m.IsNextSpeakFree() {
		t.Fatalf("expected first read true")
	}
	if m.IsNextSpeakFree() {
		t.Fatalf("expected second read false")
	}

	m.SetNextActionFreePatience()
	if !m.ShouldWaivePatienceCost() {
		t.Fatalf("expected free patience once")
	}
	if m.ShouldWaivePatienceCost() {
		t.Fatalf("free patience flag should be consumed")
	}

	m.Set(Patient)
	if !m.ShouldWaivePatienceCost() || !m.ShouldWaivePatienceCost() {
		t.Fatalf("Patient waives patience on every read")
	}
}

func TestModifyFlow(t *testing.T) {
	cases := []struct {
		typ   Type
		delta int
		want  int
	}{
		{Neutral, 2, 2},
		{Volatile, 2, 3},
		{Volatile, -1, -2},
		{Volatile, 0, 0},
		{Exposed, 2, 4},
		{Exposed, -3, -6},
		{Exposed, 0, 0},
		{Focused, -2, -2},
	}
	for _, tc := range cases {
		if got := ModifyFlow(tc.typ, tc.delta); got != tc.want {
			t.Fatalf("ModifyFlow(%s, %d) = %d, want %d", tc.typ, tc.delta, got, tc.want)
		}
	}
}

func TestResetClearsEverything(t *testing.T) {
	m := NewManager()
	m.Set(Exposed)
	m.SetNextSpeakFree()
	m.SetNextActionFreePatience()
	m.Reset()
	if m.HasTemporaryEffects() {
		t.Fatalf("expected no temporary effects after reset, got %q", m.TemporaryEffectsDescription())
	}
}

func TestParseRoundTrip(t *testing.T) {
	for typ, name := range TypeDictionary {
		got, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q) err: %v", name, err)
		}
		if got != typ {
			t.Fatalf("Parse(%q) = %s, want %s", name, got, typ)
		}
	}
	if _, err := Parse("stormy"); err == nil {
		t.Fatalf("expected error for unknown atmosphere")
	}
}
