package standing

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"parley-lite/apps/server/internal/auth"
)

type HTTPHandler struct {
	auth     auth.Service
	standing Service
}

func NewHTTPHandler(authService auth.Service, standingService Service) *HTTPHandler {
	return &HTTPHandler{auth: authService, standing: standingService}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/standing", h.handleList)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	playerID, _, ok := h.auth.ResolveSession(auth.BearerToken(r.Header.Get("Authorization")))
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	items, err := h.standing.List(ctx, playerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query standing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
