package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"parley-lite/content"
	"parley-lite/conversation"
	"parley-lite/conversation/npc"
	"parley-lite/replay"
)

// Run executes the parley command.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if cfg.Script != "" {
		return runScript(cfg.Script, out)
	}

	m, err := loadManager(cfg)
	if err != nil {
		return err
	}
	if cfg.List {
		listPersonas(out, m.Registry())
		return nil
	}

	style, ok := npc.Styles[strings.ToLower(cfg.Style)]
	if !ok {
		names := make([]string, 0, len(npc.Styles))
		for name := range npc.Styles {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown style %q (one of %s)", cfg.Style, strings.Join(names, ", "))
	}

	conv, err := m.Open(cfg.Persona, npc.OpenOptions{Seed: cfg.Seed, Style: style})
	if err != nil {
		return err
	}
	defer m.Close(conv.Session.ID())

	fmt.Fprintf(out, "%s - %s\n", conv.Persona.Name, conv.Persona.Tagline)
	if cfg.Auto {
		return runAuto(ctx, m, conv, cfg.MaxTurns, out)
	}
	return runInteractive(ctx, conv, in, out)
}

func loadManager(cfg Config) (*npc.Manager, error) {
	catalog, err := content.Catalog(cfg.Cards)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	reg := npc.NewRegistry()
	if cfg.Personas != "" {
		err = reg.LoadFromFile(cfg.Personas)
	} else {
		err = reg.LoadFromJSON(content.PersonasJSON())
	}
	if err != nil {
		return nil, fmt.Errorf("load personas: %w", err)
	}
	if err := reg.CheckDecks(catalog); err != nil {
		return nil, err
	}
	return npc.NewManager(reg, catalog, nil), nil
}

func listPersonas(out io.Writer, reg *npc.PersonaRegistry) {
	for _, p := range reg.All() {
		fmt.Fprintf(out, "%-10s tier %d  %-10s patience %-2d  %s\n", p.ID, p.Tier, p.InitialState, p.Patience, p.Tagline)
	}
}

func runAuto(ctx context.Context, m *npc.Manager, conv *npc.Conversation, maxTurns int, out io.Writer) error {
	printTable(out, conv.Session.Snapshot())
	for i := 0; i < maxTurns && !conv.Session.Ended(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, tr, err := m.Autoplay(conv.Session.ID())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "> %s (%s)\n", d.Action, conv.Brain.Name())
		printTurn(out, tr)
	}
	if !conv.Session.Ended() {
		if _, err := conv.Session.Leave(); err != nil {
			return err
		}
	}
	printOutcome(out, conv.Session.Outcome())
	return nil
}

func runInteractive(ctx context.Context, conv *npc.Conversation, in io.Reader, out io.Writer) error {
	s := conv.Session
	printTable(out, s.Snapshot())
	fmt.Fprintln(out, "type help for commands")

	scanner := bufio.NewScanner(in)
	for !s.Ended() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		cmd, err := parseCommand(scanner.Text(), s.Snapshot().Hand)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}

		var tr *conversation.TurnResult
		switch cmd.verb {
		case verbHelp:
			fmt.Fprintln(out, helpText)
			continue
		case verbHand:
			printTable(out, s.Snapshot())
			continue
		case verbQuit:
			return nil
		case verbLeave:
			if _, err := s.Leave(); err != nil {
				return err
			}
		case verbListen:
			tr, err = s.ExecuteListen()
		case verbSpeak:
			tr, err = s.ExecuteSpeak(cmd.cards...)
		}
		if err != nil {
			if errors.Is(err, conversation.ErrInsufficientFocus) || errors.Is(err, conversation.ErrCardNotInHand) || errors.Is(err, conversation.ErrDuplicateSelection) {
				fmt.Fprintln(out, err)
				continue
			}
			return err
		}
		if tr != nil {
			printTurn(out, tr)
			if !tr.Ended {
				printTable(out, s.Snapshot())
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if s.Ended() {
		printOutcome(out, s.Outcome())
	}
	return nil
}

func runScript(path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	var spec replay.ConversationSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("parse script: %w", err)
	}
	tape, err := replay.GenerateReplayTape(spec)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(replay.ToWireReplayTape(tape))
}

func printTable(out io.Writer, snap conversation.Snapshot) {
	fmt.Fprintf(out, "[%s] %s  flow %s  atmosphere %s  patience %d  focus %d/%d  draw %d\n",
		conversation.ConnectionFor(snap.State), snap.State, snap.FlowDisplay, snap.Atmosphere,
		snap.Patience, snap.Focus, snap.FocusCapacity, snap.DrawCount)
	if snap.Warning != "" {
		fmt.Fprintf(out, "  ! %s\n", snap.Warning)
	}
	if snap.AtmosphereEffects != "" {
		fmt.Fprintf(out, "  * %s\n", snap.AtmosphereEffects)
	}
	for i, c := range snap.Hand {
		mark := " "
		if !c.Playable {
			mark = "x"
		}
		fmt.Fprintf(out, " %s %d. %-22s %-8s %-10s focus %d  %3d%%\n", mark, i+1, c.Name, c.Persistence, c.Difficulty, c.Focus, c.SuccessPercent)
	}
}

func printTurn(out io.Writer, tr *conversation.TurnResult) {
	for _, p := range tr.Plays {
		verdict := "fails"
		if p.Succeeded {
			verdict = "lands"
		}
		roll := "auto"
		if p.Roll != conversation.NoRoll {
			roll = fmt.Sprintf("rolled %d vs %d%%", p.Roll, p.Percent)
		}
		fmt.Fprintf(out, "  %s %s (%s): %s\n", p.Card.Name, verdict, roll, p.Effect.Description)
	}
	for _, in := range tr.Swept {
		fmt.Fprintf(out, "  %s fades\n", in.Name)
	}
	for _, e := range tr.Exhaust {
		if e.Description != "" {
			fmt.Fprintf(out, "  exhaust %s: %s\n", e.CardID, e.Description)
		}
	}
	for _, f := range tr.Flow {
		if f.StateChanged {
			fmt.Fprintf(out, "  mood: %s -> %s\n", f.PreviousState, f.NewState)
		}
	}
	if len(tr.Drawn) > 0 {
		names := make([]string, 0, len(tr.Drawn))
		for _, in := range tr.Drawn {
			names = append(names, in.Name)
		}
		fmt.Fprintf(out, "  drew %s\n", strings.Join(names, ", "))
	}
}

func printOutcome(out io.Writer, o *conversation.Outcome) {
	if o == nil {
		return
	}
	fmt.Fprintf(out, "Outcome: %s (%s) after %d turns, rapport %+d, final mood %s\n",
		o.Kind, o.Reason, o.Turns, o.TotalRapport, o.FinalState)
	if o.GoalCardID != "" {
		fmt.Fprintf(out, "Goal: %s\n", o.GoalCardID)
	}
}
