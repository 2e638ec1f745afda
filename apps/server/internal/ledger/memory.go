package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryKey struct {
	playerID       uint64
	source         Source
	conversationID string
}

type memoryEntry struct {
	item   HistoryItem
	events []EventItem
	order  uint64 // insertion order breaks played_at ties
}

type memoryService struct {
	mu      sync.Mutex
	limits  Limits
	entries map[memoryKey]*memoryEntry
	nextOrd uint64
}

// NewMemoryService keeps history in process; it is lost on restart.
func NewMemoryService(limits Limits) Service {
	return &memoryService{
		limits:  limits.withDefaults(),
		entries: make(map[memoryKey]*memoryEntry),
	}
}

func (s *memoryService) Close() error { return nil }

func (s *memoryService) Record(_ context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{rec.PlayerID, rec.Source, rec.ConversationID}
	e, ok := s.entries[key]
	if !ok {
		s.nextOrd++
		e = &memoryEntry{order: s.nextOrd}
		s.entries[key] = e
	}
	e.item.ConversationID = rec.ConversationID
	e.item.Source = rec.Source
	e.item.NPCID = rec.NPCID
	e.item.PlayedAt = rec.PlayedAt
	e.item.Summary = rec.Summary
	if len(rec.Events) > 0 {
		e.events = append([]EventItem(nil), rec.Events...)
	}
	s.trimLocked(rec.PlayerID, rec.Source)
	return nil
}

func (s *memoryService) ListRecent(_ context.Context, playerID uint64, source Source, limit int) ([]HistoryItem, error) {
	if !isSource(source) {
		return nil, fmt.Errorf("invalid source %q", source)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sortedLocked(playerID, source, nil)
	limit = clampLimit(limit)
	items := make([]HistoryItem, 0, limit)
	for _, e := range entries {
		if len(items) == limit {
			break
		}
		items = append(items, e.item)
	}
	return items, nil
}

func (s *memoryService) GetEvents(_ context.Context, playerID uint64, source Source, conversationID string) ([]EventItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[memoryKey{playerID, source, conversationID}]
	if !ok || len(e.events) == 0 {
		return nil, ErrNotFound
	}
	return append([]EventItem(nil), e.events...), nil
}

func (s *memoryService) SetSaved(_ context.Context, playerID uint64, source Source, conversationID string, saved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[memoryKey{playerID, source, conversationID}]
	if !ok {
		return ErrNotFound
	}
	if e.item.IsSaved == saved {
		return nil
	}
	if saved {
		isSaved := true
		if len(s.sortedLocked(playerID, source, &isSaved)) >= s.limits.Saved {
			return ErrSavedLimitReach
		}
		now := time.Now().UTC()
		e.item.IsSaved = true
		e.item.SavedAt = &now
		return nil
	}
	e.item.IsSaved = false
	e.item.SavedAt = nil
	s.trimLocked(playerID, source)
	return nil
}

// sortedLocked returns the player's entries for source, newest first,
// optionally filtered by saved state.
func (s *memoryService) sortedLocked(playerID uint64, source Source, saved *bool) []*memoryEntry {
	var out []*memoryEntry
	for k, e := range s.entries {
		if k.playerID != playerID || k.source != source {
			continue
		}
		if saved != nil && e.item.IsSaved != *saved {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].item.PlayedAt.Equal(out[j].item.PlayedAt) {
			return out[i].item.PlayedAt.After(out[j].item.PlayedAt)
		}
		return out[i].order > out[j].order
	})
	return out
}

func (s *memoryService) trimLocked(playerID uint64, source Source) {
	if s.limits.Recent == 0 {
		return
	}
	unsaved := false
	entries := s.sortedLocked(playerID, source, &unsaved)
	for _, e := range entries[min(len(entries), s.limits.Recent):] {
		delete(s.entries, memoryKey{playerID, source, e.item.ConversationID})
	}
}
