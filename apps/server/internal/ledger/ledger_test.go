package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parley-lite/apps/server/internal/auth"
	"parley-lite/apps/server/internal/storage"
)

func newSQLiteService(t *testing.T, limits Limits) Service {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewSQLService(context.Background(), db, limits)
	if err != nil {
		t.Fatalf("NewSQLService err: %v", err)
	}
	return s
}

func services(t *testing.T, limits Limits, fn func(t *testing.T, s Service)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryService(limits)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteService(t, limits)) })
}

func record(t *testing.T, s Service, playerID uint64, id string, at time.Time) {
	t.Helper()
	err := s.Record(context.Background(), Record{
		PlayerID:       playerID,
		ConversationID: id,
		Source:         SourceLive,
		NPCID:          "elena",
		PlayedAt:       at,
		Summary:        map[string]any{"outcome": "success"},
		Events: []EventItem{
			{Seq: 1, EventType: "snapshot", EnvelopeB64: "AA=="},
			{Seq: 2, EventType: "conversationEnd", EnvelopeB64: "AQ=="},
		},
	})
	if err != nil {
		t.Fatalf("Record %s err: %v", id, err)
	}
}

func TestRecordAndListRecent(t *testing.T) {
	services(t, Limits{Recent: 10, Saved: 2}, func(t *testing.T, s Service) {
		ctx := context.Background()
		base := time.UnixMilli(1_700_000_000_000).UTC()
		record(t, s, 7, "c1", base)
		record(t, s, 7, "c2", base.Add(time.Minute))
		record(t, s, 8, "other", base)

		items, err := s.ListRecent(ctx, 7, SourceLive, 0)
		if err != nil {
			t.Fatalf("ListRecent err: %v", err)
		}
		if len(items) != 2 || items[0].ConversationID != "c2" || items[1].ConversationID != "c1" {
			t.Fatalf("expected newest first, got %+v", items)
		}
		if items[0].NPCID != "elena" || items[0].Summary["outcome"] != "success" {
			t.Fatalf("unexpected item %+v", items[0])
		}
		if !items[0].PlayedAt.Equal(base.Add(time.Minute)) {
			t.Fatalf("played_at round trip: %v", items[0].PlayedAt)
		}

		replays, err := s.ListRecent(ctx, 7, SourceReplay, 10)
		if err != nil || len(replays) != 0 {
			t.Fatalf("expected no replay history, got %v %v", replays, err)
		}

		events, err := s.GetEvents(ctx, 7, SourceLive, "c1")
		if err != nil {
			t.Fatalf("GetEvents err: %v", err)
		}
		if len(events) != 2 || events[1].EventType != "conversationEnd" {
			t.Fatalf("unexpected events %+v", events)
		}
		if _, err := s.GetEvents(ctx, 8, SourceLive, "c1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for another player, got %v", err)
		}
	})
}

func TestRecordTrimsUnsavedHistory(t *testing.T) {
	services(t, Limits{Recent: 2, Saved: 5}, func(t *testing.T, s Service) {
		ctx := context.Background()
		base := time.UnixMilli(1_700_000_000_000).UTC()
		record(t, s, 7, "c0", base)
		if err := s.SetSaved(ctx, 7, SourceLive, "c0", true); err != nil {
			t.Fatalf("SetSaved err: %v", err)
		}
		for i := 1; i <= 4; i++ {
			record(t, s, 7, fmt.Sprintf("c%d", i), base.Add(time.Duration(i)*time.Minute))
		}

		items, err := s.ListRecent(ctx, 7, SourceLive, 50)
		if err != nil {
			t.Fatalf("ListRecent err: %v", err)
		}
		var ids []string
		for _, it := range items {
			ids = append(ids, it.ConversationID)
		}
		if got := strings.Join(ids, ","); got != "c4,c3,c0" {
			t.Fatalf("expected saved c0 to survive the trim, got %s", got)
		}
		if _, err := s.GetEvents(ctx, 7, SourceLive, "c1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("trimmed conversation should be gone, got %v", err)
		}
	})
}

func TestSetSavedLimit(t *testing.T) {
	services(t, Limits{Recent: 10, Saved: 1}, func(t *testing.T, s Service) {
		ctx := context.Background()
		base := time.UnixMilli(1_700_000_000_000).UTC()
		record(t, s, 7, "c1", base)
		record(t, s, 7, "c2", base.Add(time.Second))

		if err := s.SetSaved(ctx, 7, SourceLive, "c1", true); err != nil {
			t.Fatalf("SetSaved err: %v", err)
		}
		if err := s.SetSaved(ctx, 7, SourceLive, "c1", true); err != nil {
			t.Fatalf("saving twice should be a no-op, got %v", err)
		}
		if err := s.SetSaved(ctx, 7, SourceLive, "c2", true); !errors.Is(err, ErrSavedLimitReach) {
			t.Fatalf("expected ErrSavedLimitReach, got %v", err)
		}
		if err := s.SetSaved(ctx, 7, SourceLive, "missing", true); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		items, err := s.ListRecent(ctx, 7, SourceLive, 10)
		if err != nil {
			t.Fatalf("ListRecent err: %v", err)
		}
		for _, it := range items {
			if it.ConversationID == "c1" && (!it.IsSaved || it.SavedAt == nil) {
				t.Fatalf("c1 should be saved: %+v", it)
			}
		}

		if err := s.SetSaved(ctx, 7, SourceLive, "c1", false); err != nil {
			t.Fatalf("unsave err: %v", err)
		}
		if err := s.SetSaved(ctx, 7, SourceLive, "c2", true); err != nil {
			t.Fatalf("save after unsave err: %v", err)
		}
	})
}

func TestRecordRejectsBadInput(t *testing.T) {
	s := NewMemoryService(Limits{})
	if err := s.Record(context.Background(), Record{PlayerID: 1, ConversationID: "x", Source: "bogus"}); err == nil {
		t.Fatalf("expected invalid source error")
	}
	if err := s.Record(context.Background(), Record{ConversationID: "x", Source: SourceLive}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without a player, got %v", err)
	}
}

const replayBody = `{
  "npc_id": "elena",
  "initial_state": "neutral",
  "patience": 10,
  "focus_capacity": 5,
  "opening_hand": 2,
  "deck": [
    {"id": "warm_greeting", "name": "Warm Greeting", "type": "conversation", "persistence": "thought", "difficulty": "very_easy", "focus": 0, "success": "rapport", "failure": "none", "exhaust": "none"},
    {"id": "warm_greeting", "name": "Warm Greeting", "type": "conversation", "persistence": "thought", "difficulty": "very_easy", "focus": 0, "success": "rapport", "failure": "none", "exhaust": "none"},
    {"id": "warm_greeting", "name": "Warm Greeting", "type": "conversation", "persistence": "thought", "difficulty": "very_easy", "focus": 0, "success": "rapport", "failure": "none", "exhaust": "none"}
  ],
  "actions": [{"type": "SPEAK", "cards": ["warm_greeting"]}, {"type": "LEAVE"}],
  "rng": {"seed": 3}
}`

func TestHTTPReplayRoundTrip(t *testing.T) {
	authService := auth.NewMemoryStore(time.Hour)
	_, token, _, err := authService.Guest("")
	if err != nil {
		t.Fatalf("Guest err: %v", err)
	}
	mux := http.NewServeMux()
	NewHTTPHandler(authService, NewMemoryService(Limits{})).RegisterRoutes(mux)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/api/ledger/replay/conversations/r1", replayBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(http.MethodGet, "/api/ledger/replay/recent", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"conversation_id":"r1"`) {
		t.Fatalf("recent status %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(http.MethodGet, "/api/ledger/replay/conversations/r1", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"event_type":"conversationEnd"`) {
		t.Fatalf("events status %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(http.MethodPost, "/api/ledger/replay/conversations/r1/save", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("save status %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(http.MethodGet, "/api/ledger/live/conversations/r1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("live lookup should miss, got %d", rec.Code)
	}

	bad := strings.Replace(replayBody, `"patience": 10`, `"patience": 0`, 1)
	rec = do(http.MethodPost, "/api/ledger/replay/conversations/r2", bad)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "invalid_patience") {
		t.Fatalf("bad replay status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHTTPRequiresSession(t *testing.T) {
	mux := http.NewServeMux()
	NewHTTPHandler(auth.NewMemoryStore(time.Hour), NewMemoryService(Limits{})).RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ledger/live/recent", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
