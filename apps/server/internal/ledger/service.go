// Package ledger keeps per-player conversation history: a summary row plus
// the recorded event tape, for live conversations and scripted replays.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultRecentLimit = 200
	defaultSavedLimit  = 50
)

type Source string

const (
	SourceLive   Source = "live"
	SourceReplay Source = "replay"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrSavedLimitReach = errors.New("saved conversation limit reached")
)

type Service interface {
	Close() error
	// Record upserts a conversation and trims the player's unsaved history
	// for that source to the recent limit.
	Record(ctx context.Context, rec Record) error
	ListRecent(ctx context.Context, playerID uint64, source Source, limit int) ([]HistoryItem, error)
	GetEvents(ctx context.Context, playerID uint64, source Source, conversationID string) ([]EventItem, error)
	SetSaved(ctx context.Context, playerID uint64, source Source, conversationID string, saved bool) error
}

type Record struct {
	PlayerID       uint64
	ConversationID string
	Source         Source
	NPCID          string
	PlayedAt       time.Time
	Summary        map[string]any
	Events         []EventItem
}

type HistoryItem struct {
	ConversationID string         `json:"conversation_id"`
	Source         Source         `json:"source"`
	NPCID          string         `json:"npc_id"`
	PlayedAt       time.Time      `json:"played_at"`
	IsSaved        bool           `json:"is_saved"`
	SavedAt        *time.Time     `json:"saved_at,omitempty"`
	Summary        map[string]any `json:"summary"`
}

type EventItem struct {
	Seq         uint64 `json:"seq"`
	EventType   string `json:"event_type"`
	EnvelopeB64 string `json:"envelope_b64"`
}

// Limits bound how much history a player keeps.
type Limits struct {
	Recent int // unsaved conversations kept per source; 0 keeps all
	Saved  int // saved conversations allowed per source
}

func (l Limits) withDefaults() Limits {
	if l.Recent < 0 {
		l.Recent = defaultRecentLimit
	}
	if l.Saved <= 0 {
		l.Saved = defaultSavedLimit
	}
	return l
}

func (r *Record) validate() error {
	if r.PlayerID == 0 || strings.TrimSpace(r.ConversationID) == "" {
		return ErrNotFound
	}
	if !isSource(r.Source) {
		return fmt.Errorf("invalid source %q", r.Source)
	}
	if r.PlayedAt.IsZero() {
		r.PlayedAt = time.Now().UTC()
	}
	if r.Summary == nil {
		r.Summary = map[string]any{}
	}
	if _, ok := r.Summary["event_count"]; !ok {
		r.Summary["event_count"] = len(r.Events)
	}
	return nil
}

func isSource(source Source) bool {
	return source == SourceLive || source == SourceReplay
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
