package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"parley-lite/apps/server/internal/storage"
)

// SQLStore keeps players and sessions in sqlite or postgres.
type SQLStore struct {
	db         *storage.DB
	sessionTTL time.Duration
}

var sqliteSchema = []string{
	`
CREATE TABLE IF NOT EXISTS players (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL,
    is_guest INTEGER NOT NULL DEFAULT 0,
    created_at_ms INTEGER NOT NULL,
    last_login_at_ms INTEGER
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_players_username ON players(lower(username))`,
	`
CREATE TABLE IF NOT EXISTS player_credentials (
    player_id INTEGER PRIMARY KEY,
    password_hash TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    FOREIGN KEY(player_id) REFERENCES players(id) ON DELETE CASCADE
)`,
	`
CREATE TABLE IF NOT EXISTS player_sessions (
    token TEXT PRIMARY KEY,
    player_id INTEGER NOT NULL,
    issued_at_ms INTEGER NOT NULL,
    expires_at_ms INTEGER NOT NULL,
    revoked_at_ms INTEGER,
    FOREIGN KEY(player_id) REFERENCES players(id) ON DELETE CASCADE
)`,
	`CREATE INDEX IF NOT EXISTS idx_player_sessions_player ON player_sessions(player_id, expires_at_ms DESC)`,
}

var postgresSchema = []string{
	`
CREATE TABLE IF NOT EXISTS players (
    id BIGSERIAL PRIMARY KEY,
    username TEXT NOT NULL,
    is_guest BOOLEAN NOT NULL DEFAULT FALSE,
    created_at_ms BIGINT NOT NULL,
    last_login_at_ms BIGINT
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_players_username ON players(lower(username))`,
	`
CREATE TABLE IF NOT EXISTS player_credentials (
    player_id BIGINT PRIMARY KEY REFERENCES players(id) ON DELETE CASCADE,
    password_hash TEXT NOT NULL,
    updated_at_ms BIGINT NOT NULL
)`,
	`
CREATE TABLE IF NOT EXISTS player_sessions (
    token TEXT PRIMARY KEY,
    player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    issued_at_ms BIGINT NOT NULL,
    expires_at_ms BIGINT NOT NULL,
    revoked_at_ms BIGINT
)`,
	`CREATE INDEX IF NOT EXISTS idx_player_sessions_player ON player_sessions(player_id, expires_at_ms DESC)`,
}

// NewSQLStore migrates the auth tables and returns a store over db. The
// caller owns db.
func NewSQLStore(ctx context.Context, db *storage.DB, sessionTTL time.Duration) (*SQLStore, error) {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	if err := db.Migrate(ctx, sqliteSchema, postgresSchema); err != nil {
		return nil, fmt.Errorf("auth schema: %w", err)
	}
	return &SQLStore{db: db, sessionTTL: sessionTTL}, nil
}

func (s *SQLStore) Close() error { return nil }

func (s *SQLStore) Register(username, password string) (uint64, string, error) {
	if err := validateUsername(username); err != nil {
		return 0, "", err
	}
	if err := validatePassword(password); err != nil {
		return 0, "", err
	}
	normalized := normalizeUsername(username)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	nowMs := storage.NowMs()
	playerID, err := s.insertPlayerTx(ctx, tx, normalized, false, nowMs)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return 0, "", ErrUsernameTaken
		}
		return 0, "", err
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
INSERT INTO player_credentials (player_id, password_hash, updated_at_ms)
VALUES (?, ?, ?)
`), playerID, string(hash), nowMs); err != nil {
		return 0, "", err
	}
	token, err := s.issueSessionTx(ctx, tx, playerID, nowMs)
	if err != nil {
		return 0, "", err
	}
	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return playerID, token, nil
}

func (s *SQLStore) Login(username, password string) (uint64, string, error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return 0, "", ErrInvalidCredentials
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		playerID uint64
		hash     string
	)
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
SELECT p.id, c.password_hash
FROM players AS p
JOIN player_credentials AS c ON c.player_id = p.id
WHERE lower(p.username) = ?
`), normalized).Scan(&playerID, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", ErrInvalidCredentials
		}
		return 0, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return 0, "", ErrInvalidCredentials
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	nowMs := storage.NowMs()
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`UPDATE players SET last_login_at_ms = ? WHERE id = ?`), nowMs, playerID); err != nil {
		return 0, "", err
	}
	token, err := s.issueSessionTx(ctx, tx, playerID, nowMs)
	if err != nil {
		return 0, "", err
	}
	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return playerID, token, nil
}

func (s *SQLStore) ResolveSession(token string) (uint64, string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	nowMs := storage.NowMs()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
UPDATE player_sessions
SET expires_at_ms = ?
WHERE token = ?
  AND revoked_at_ms IS NULL
  AND expires_at_ms > ?
`), nowMs+s.sessionTTL.Milliseconds(), token, nowMs)
	if err != nil {
		return 0, "", false
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return 0, "", false
	}

	var (
		playerID uint64
		username string
	)
	if err := s.db.QueryRowContext(ctx, s.db.Rebind(`
SELECT p.id, p.username
FROM player_sessions AS s
JOIN players AS p ON p.id = s.player_id
WHERE s.token = ?
`), token).Scan(&playerID, &username); err != nil {
		return 0, "", false
	}
	return playerID, username, true
}

func (s *SQLStore) Guest(token string) (uint64, string, bool, error) {
	if id, _, ok := s.ResolveSession(token); ok {
		return id, strings.TrimSpace(token), true, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, "", false, err
		}
		nowMs := storage.NowMs()
		playerID, err := s.insertPlayerTx(ctx, tx, guestName(), true, nowMs)
		if err != nil {
			_ = tx.Rollback()
			if storage.IsUniqueViolation(err) {
				continue
			}
			return 0, "", false, err
		}
		newToken, err := s.issueSessionTx(ctx, tx, playerID, nowMs)
		if err != nil {
			_ = tx.Rollback()
			return 0, "", false, err
		}
		if err := tx.Commit(); err != nil {
			return 0, "", false, err
		}
		return playerID, newToken, false, nil
	}
	return 0, "", false, fmt.Errorf("failed to allocate a guest name")
}

func (s *SQLStore) Logout(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = s.db.ExecContext(ctx, s.db.Rebind(`
UPDATE player_sessions
SET revoked_at_ms = ?
WHERE token = ?
  AND revoked_at_ms IS NULL
`), storage.NowMs(), token)
}

func (s *SQLStore) insertPlayerTx(ctx context.Context, tx *sql.Tx, username string, guest bool, nowMs int64) (uint64, error) {
	var id uint64
	err := tx.QueryRowContext(ctx, s.db.Rebind(`
INSERT INTO players (username, is_guest, created_at_ms, last_login_at_ms)
VALUES (?, ?, ?, ?)
RETURNING id
`), username, guest, nowMs, nowMs).Scan(&id)
	return id, err
}

func (s *SQLStore) issueSessionTx(ctx context.Context, tx *sql.Tx, playerID uint64, nowMs int64) (string, error) {
	expiresMs := nowMs + s.sessionTTL.Milliseconds()
	for i := 0; i < 5; i++ {
		token := mustToken()
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`
INSERT INTO player_sessions (token, player_id, issued_at_ms, expires_at_ms)
VALUES (?, ?, ?, ?)
`), token, playerID, nowMs, expiresMs); err != nil {
			if storage.IsUniqueViolation(err) {
				continue
			}
			return "", err
		}
		return token, nil
	}
	return "", fmt.Errorf("failed to generate unique session token")
}
