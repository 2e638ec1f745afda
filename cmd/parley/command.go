package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"parley-lite/conversation"
)

type verb int

const (
	verbUnknown verb = iota
	verbSpeak
	verbListen
	verbLeave
	verbHand
	verbHelp
	verbQuit
)

var verbAliases = map[string]verb{
	"speak":  verbSpeak,
	"say":    verbSpeak,
	"play":   verbSpeak,
	"s":      verbSpeak,
	"listen": verbListen,
	"wait":   verbListen,
	"l":      verbListen,
	"leave":  verbLeave,
	"bye":    verbLeave,
	"hand":   verbHand,
	"status": verbHand,
	"h":      verbHand,
	"help":   verbHelp,
	"?":      verbHelp,
	"quit":   verbQuit,
	"exit":   verbQuit,
}

type command struct {
	verb  verb
	cards []uint64
}

// parseCommand reads one input line against the current hand. Cards are
// picked by 1-based hand position or by (possibly misspelled) id or name.
func parseCommand(line string, hand []conversation.CardSnapshot) (command, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return command{}, fmt.Errorf("type help for commands")
	}
	v := matchVerb(fields[0])
	if v == verbUnknown {
		return command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	cmd := command{verb: v}
	if v != verbSpeak {
		return cmd, nil
	}
	if len(fields) == 1 {
		return command{}, fmt.Errorf("speak needs at least one card")
	}
	used := make(map[uint64]struct{})
	for _, arg := range splitCardArgs(fields[1:]) {
		uid, err := matchCard(arg, hand, used)
		if err != nil {
			return command{}, err
		}
		used[uid] = struct{}{}
		cmd.cards = append(cmd.cards, uid)
	}
	return cmd, nil
}

func matchVerb(word string) verb {
	if v, ok := verbAliases[word]; ok {
		return v
	}
	best, bestDist, bestAlias := verbUnknown, 0, ""
	for alias, v := range verbAliases {
		if len(alias) < 3 {
			continue
		}
		dist := levenshtein.ComputeDistance(word, alias)
		if dist > levenshteinLimit(len(alias)) {
			continue
		}
		if best == verbUnknown || dist < bestDist || (dist == bestDist && alias < bestAlias) {
			best, bestDist, bestAlias = v, dist, alias
		}
	}
	return best
}

// splitCardArgs accepts "1 3", "1,3" and multi-word names joined by "+".
func splitCardArgs(fields []string) []string {
	var out []string
	for _, f := range fields {
		for _, part := range strings.Split(f, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, strings.ReplaceAll(part, "+", " "))
			}
		}
	}
	return out
}

func matchCard(arg string, hand []conversation.CardSnapshot, used map[uint64]struct{}) (uint64, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(hand) {
			return 0, fmt.Errorf("no card at position %d", n)
		}
		uid := hand[n-1].UID
		if _, dup := used[uid]; dup {
			return 0, fmt.Errorf("card %d picked twice", n)
		}
		return uid, nil
	}

	var (
		bestUID  uint64
		bestDist = -1
	)
	for _, c := range hand {
		if _, dup := used[c.UID]; dup {
			continue
		}
		for _, key := range []string{c.ID, strings.ToLower(c.Name), strings.ReplaceAll(c.ID, "_", " ")} {
			dist := levenshtein.ComputeDistance(arg, key)
			if dist > levenshteinLimit(len(key)) {
				continue
			}
			if bestDist < 0 || dist < bestDist {
				bestUID, bestDist = c.UID, dist
			}
		}
	}
	if bestDist < 0 {
		return 0, fmt.Errorf("no card like %q in hand", arg)
	}
	return bestUID, nil
}

func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

const helpText = `commands:
  speak <cards>   play cards by position (speak 1 3) or name (speak small_talk)
  listen          sweep openings, draw, refresh focus
  hand            show the table
  leave           end the conversation
  quit            exit without leaving politely`
