package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"parley-lite/card"
	"parley-lite/conversation"
)

func testHand() []conversation.CardSnapshot {
	return []conversation.CardSnapshot{
		{UID: 11, ID: "small_talk", Name: "Small Talk", Type: card.TypeConversation},
		{UID: 12, ID: "shared_memory", Name: "Shared Memory", Type: card.TypeConversation},
		{UID: 13, ID: "small_talk", Name: "Small Talk", Type: card.TypeConversation},
	}
}

func TestParseCommandVerbs(t *testing.T) {
	cases := map[string]verb{
		"listen": verbListen,
		"lisen":  verbListen,
		"L":      verbListen,
		"leave":  verbLeave,
		"hand":   verbHand,
		"help":   verbHelp,
		"quit":   verbQuit,
	}
	for line, want := range cases {
		cmd, err := parseCommand(line, nil)
		if err != nil {
			t.Fatalf("parseCommand(%q) err: %v", line, err)
		}
		if cmd.verb != want {
			t.Fatalf("parseCommand(%q) verb=%d, want %d", line, cmd.verb, want)
		}
	}
	if _, err := parseCommand("dance", nil); err == nil {
		t.Fatalf("expected unknown command error")
	}
	if _, err := parseCommand("   ", nil); err == nil {
		t.Fatalf("expected empty input error")
	}
}

func TestParseCommandCards(t *testing.T) {
	hand := testHand()

	cmd, err := parseCommand("speak 1,2", hand)
	if err != nil {
		t.Fatalf("parseCommand err: %v", err)
	}
	if cmd.verb != verbSpeak || len(cmd.cards) != 2 || cmd.cards[0] != 11 || cmd.cards[1] != 12 {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	// a repeated name picks the next copy
	cmd, err = parseCommand("say small_talk smal_talk", hand)
	if err != nil {
		t.Fatalf("parseCommand err: %v", err)
	}
	if len(cmd.cards) != 2 || cmd.cards[0] != 11 || cmd.cards[1] != 13 {
		t.Fatalf("expected both small talks, got %+v", cmd.cards)
	}

	cmd, err = parseCommand("s shared+memory", hand)
	if err != nil || len(cmd.cards) != 1 || cmd.cards[0] != 12 {
		t.Fatalf("expected shared memory by name, got %+v err=%v", cmd, err)
	}

	if _, err := parseCommand("speak", hand); err == nil {
		t.Fatalf("expected missing card error")
	}
	if _, err := parseCommand("speak 4", hand); err == nil {
		t.Fatalf("expected out of range error")
	}
	if _, err := parseCommand("speak 2 2", hand); err == nil {
		t.Fatalf("expected duplicate pick error")
	}
	if _, err := parseCommand("speak deliver_letter", hand); err == nil {
		t.Fatalf("expected unknown card error")
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("PARLEY_PERSONA", "vera")
	t.Setenv("PARLEY_SEED", "9")

	cfg, err := ParseConfig(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-auto", "-style", "bold"})
	if err != nil {
		t.Fatalf("ParseConfig err: %v", err)
	}
	if cfg.Persona != "vera" || cfg.Seed != 9 || !cfg.Auto || cfg.Style != "bold" || cfg.MaxTurns != 60 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseConfig(fs, []string{"-max-turns", "0"}); err == nil {
		t.Fatalf("expected max-turns error")
	}
}

func TestRunAutoFinishes(t *testing.T) {
	var out strings.Builder
	cfg := Config{Persona: "marcus", Seed: 5, Auto: true, Style: "balanced", MaxTurns: 60}
	if err := Run(context.Background(), cfg, nil, &out); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if !strings.Contains(out.String(), "Outcome: ") {
		t.Fatalf("expected an outcome line, got:\n%s", out.String())
	}
}

func TestRunRejectsUnknownStyle(t *testing.T) {
	cfg := Config{Persona: "marcus", Seed: 5, Auto: true, Style: "reckless", MaxTurns: 5}
	if err := Run(context.Background(), cfg, nil, io.Discard); err == nil {
		t.Fatalf("expected unknown style error")
	}
}

func TestRunInteractiveLeave(t *testing.T) {
	var out strings.Builder
	in := strings.NewReader("help\nlisten\nleave\n")
	cfg := Config{Persona: "elena", Seed: 3, Style: "balanced", MaxTurns: 60}
	if err := Run(context.Background(), cfg, in, &out); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "commands:") {
		t.Fatalf("expected help text")
	}
	if !strings.Contains(got, "Outcome: abandoned") {
		t.Fatalf("expected an outcome, got:\n%s", got)
	}
}

func TestRunListPersonas(t *testing.T) {
	var out strings.Builder
	if err := Run(context.Background(), Config{List: true, Style: "balanced", MaxTurns: 1}, nil, &out); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	for _, id := range []string{"elena", "marcus", "old_tomas", "vera"} {
		if !strings.Contains(out.String(), id) {
			t.Fatalf("expected %s in listing", id)
		}
	}
}

func TestRunScriptPrintsTape(t *testing.T) {
	script := `{
  "npc_id": "elena",
  "initial_state": "neutral",
  "patience": 5,
  "focus_capacity": 3,
  "opening_hand": 2,
  "deck": [
    {"id": "warm_greeting", "name": "Warm Greeting", "type": "conversation", "persistence": "thought", "difficulty": "very_easy", "focus": 0, "success": "rapport", "failure": "none", "exhaust": "none"},
    {"id": "warm_greeting", "name": "Warm Greeting", "type": "conversation", "persistence": "thought", "difficulty": "very_easy", "focus": 0, "success": "rapport", "failure": "none", "exhaust": "none"},
    {"id": "warm_greeting", "name": "Warm Greeting", "type": "conversation", "persistence": "thought", "difficulty": "very_easy", "focus": 0, "success": "rapport", "failure": "none", "exhaust": "none"}
  ],
  "actions": [{"type": "SPEAK", "cards": ["warm_greeting"]}, {"type": "LISTEN"}],
  "rng": {"seed": 7}
}`
	path := filepath.Join(t.TempDir(), "script.json")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	var out strings.Builder
	if err := Run(context.Background(), Config{Script: path}, nil, &out); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if !strings.Contains(out.String(), `"conversationId": "replay_local"`) {
		t.Fatalf("expected a wire tape, got:\n%s", out.String())
	}
}
