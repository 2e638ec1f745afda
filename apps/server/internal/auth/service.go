package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the player account contract consumed by the gateway and the
// HTTP handlers.
type Service interface {
	Register(username, password string) (playerID uint64, sessionToken string, err error)
	Login(username, password string) (playerID uint64, sessionToken string, err error)
	ResolveSession(token string) (playerID uint64, username string, ok bool)
	// Guest reuses token when it is still valid, otherwise creates a guest
	// player with a fresh session.
	Guest(token string) (playerID uint64, sessionToken string, reused bool, err error)
	Logout(token string)
	Close() error
}

const (
	defaultSessionTTL = 30 * 24 * time.Hour
	tokenBytes        = 32
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]{2,31}$`)

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	return nil
}

// bcrypt ignores bytes past 72.
func validatePassword(password string) error {
	if len(password) < 6 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

func guestName() string {
	return "guest_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
