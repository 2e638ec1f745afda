package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parley-lite/apps/server/internal/auth"
	"parley-lite/replay"
)

type HTTPHandler struct {
	auth   auth.Service
	ledger Service
}

type errorResponse struct {
	Error  string              `json:"error"`
	Replay *replay.ReplayError `json:"replay_error,omitempty"`
}

func NewHTTPHandler(authService auth.Service, ledgerService Service) *HTTPHandler {
	return &HTTPHandler{
		auth:   authService,
		ledger: ledgerService,
	}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/ledger/live/recent", h.handleRecent(SourceLive))
	mux.HandleFunc("/api/ledger/replay/recent", h.handleRecent(SourceReplay))
	mux.HandleFunc("/api/ledger/live/conversations/", h.handleConversations(SourceLive))
	mux.HandleFunc("/api/ledger/replay/conversations/", h.handleConversations(SourceReplay))
}

func (h *HTTPHandler) handleRecent(source Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		userID, ok := h.resolveUserID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		limit := parseLimit(r.URL.Query().Get("limit"))
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		items, err := h.ledger.ListRecent(ctx, userID, source, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query recent conversations failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"items": items,
		})
	}
}

func (h *HTTPHandler) handleConversations(source Source) http.HandlerFunc {
	prefix := "/api/ledger/" + string(source) + "/conversations/"
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.resolveUserID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		path := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, prefix))
		if path == "" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		parts := strings.Split(path, "/")
		conversationID := strings.TrimSpace(parts[0])
		if conversationID == "" {
			writeError(w, http.StatusBadRequest, "missing conversation id")
			return
		}

		if len(parts) == 1 {
			if source == SourceReplay && r.Method == http.MethodPost {
				h.handleGenerateReplay(w, r, userID, conversationID)
				return
			}
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			h.handleGetConversation(w, r, userID, source, conversationID)
			return
		}

		if len(parts) == 2 && parts[1] == "save" {
			switch r.Method {
			case http.MethodPost:
				h.handleSetSaved(w, r, userID, source, conversationID, true)
			case http.MethodDelete:
				h.handleSetSaved(w, r, userID, source, conversationID, false)
			default:
				writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			}
			return
		}

		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *HTTPHandler) handleGetConversation(w http.ResponseWriter, r *http.Request, userID uint64, source Source, conversationID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	events, err := h.ledger.GetEvents(ctx, userID, source, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query conversation events failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"source":          source,
		"events":          events,
	})
}

func (h *HTTPHandler) handleSetSaved(w http.ResponseWriter, r *http.Request, userID uint64, source Source, conversationID string, saved bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	err := h.ledger.SetSaved(ctx, userID, source, conversationID, saved)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, ErrSavedLimitReach):
			writeError(w, http.StatusConflict, "saved conversation limit reached")
		default:
			writeError(w, http.StatusInternalServerError, "update save state failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"source":          source,
		"is_saved":        saved,
	})
}

// handleGenerateReplay runs a scripted conversation and files its tape
// under the replay source.
func (h *HTTPHandler) handleGenerateReplay(w http.ResponseWriter, r *http.Request, userID uint64, conversationID string) {
	var spec replay.ConversationSpec
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tape, err := replay.GenerateReplayTape(spec)
	if err != nil {
		var replayErr *replay.ReplayError
		if errors.As(err, &replayErr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "replay failed", Replay: replayErr})
			return
		}
		writeError(w, http.StatusInternalServerError, "generate replay failed")
		return
	}

	events := make([]EventItem, 0, len(tape.Events))
	for _, ev := range tape.Events {
		events = append(events, EventItem{Seq: ev.Seq, EventType: ev.Type, EnvelopeB64: ev.EnvelopeB64})
	}
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()
	err = h.ledger.Record(ctx, Record{
		PlayerID:       userID,
		ConversationID: conversationID,
		Source:         SourceReplay,
		NPCID:          tape.NPCID,
		Summary: map[string]any{
			"tape_version": tape.TapeVersion,
			"actions":      len(spec.Actions),
			"event_count":  len(events),
		},
		Events: events,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "record replay failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"source":          SourceReplay,
		"event_count":     len(events),
	})
}

func (h *HTTPHandler) resolveUserID(r *http.Request) (uint64, bool) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return 0, false
	}
	userID, _, ok := h.auth.ResolveSession(token)
	if !ok {
		return 0, false
	}
	return userID, true
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 20
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
