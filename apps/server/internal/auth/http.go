package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type HTTPHandler struct {
	service Service
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	PlayerID     uint64 `json:"player_id"`
	SessionToken string `json:"session_token"`
	Reused       bool   `json:"reused,omitempty"`
}

type meResponse struct {
	PlayerID uint64 `json:"player_id"`
	Username string `json:"username"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(service Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", only(http.MethodPost, h.issue(h.service.Register, "register failed")))
	mux.HandleFunc("/api/auth/login", only(http.MethodPost, h.issue(h.service.Login, "login failed")))
	mux.HandleFunc("/api/auth/guest", only(http.MethodPost, h.handleGuest))
	mux.HandleFunc("/api/auth/logout", only(http.MethodPost, h.session(h.handleLogout)))
	mux.HandleFunc("/api/auth/me", only(http.MethodGet, h.session(h.handleMe)))
}

// only rejects every method but method with 405.
func only(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

// credentialStatus maps a Register/Login error to its response.
func credentialStatus(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrUsernameTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid username or password"
	default:
		return http.StatusInternalServerError, fallback
	}
}

// issue serves register and login: both take credentials and hand back a
// fresh session for the player.
func (h *HTTPHandler) issue(fn func(username, password string) (uint64, string, error), failed string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		playerID, token, err := fn(req.Username, req.Password)
		if err != nil {
			status, msg := credentialStatus(err, failed)
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{PlayerID: playerID, SessionToken: token})
	}
}

// session requires a bearer token; the resolved owner is left to next.
func (h *HTTPHandler) session(next func(w http.ResponseWriter, token string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}
		next(w, token)
	}
}

func (h *HTTPHandler) handleLogout(w http.ResponseWriter, token string) {
	h.service.Logout(token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, token string) {
	playerID, username, ok := h.service.ResolveSession(token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{PlayerID: playerID, Username: username})
}

// handleGuest hands out a guest session, or echoes the caller's token when it
// is still valid.
func (h *HTTPHandler) handleGuest(w http.ResponseWriter, r *http.Request) {
	playerID, token, reused, err := h.service.Guest(BearerToken(r.Header.Get("Authorization")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "guest session failed")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		PlayerID:     playerID,
		SessionToken: token,
		Reused:       reused,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
