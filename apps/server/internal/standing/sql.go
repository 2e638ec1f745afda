package standing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parley-lite/apps/server/internal/storage"
	"parley-lite/conversation"
)

var sqliteSchema = []string{
	`
CREATE TABLE IF NOT EXISTS npc_standing (
    player_id INTEGER NOT NULL,
    npc_id TEXT NOT NULL,
    conversations INTEGER NOT NULL DEFAULT 0,
    successes INTEGER NOT NULL DEFAULT 0,
    failures INTEGER NOT NULL DEFAULT 0,
    abandoned INTEGER NOT NULL DEFAULT 0,
    best_rapport INTEGER NOT NULL DEFAULT 0,
    trust INTEGER NOT NULL DEFAULT 0,
    goals_json TEXT NOT NULL DEFAULT '[]',
    updated_at_ms INTEGER NOT NULL,
    PRIMARY KEY (player_id, npc_id)
)`,
}

var postgresSchema = []string{
	`
CREATE TABLE IF NOT EXISTS npc_standing (
    player_id BIGINT NOT NULL,
    npc_id TEXT NOT NULL,
    conversations INTEGER NOT NULL DEFAULT 0,
    successes INTEGER NOT NULL DEFAULT 0,
    failures INTEGER NOT NULL DEFAULT 0,
    abandoned INTEGER NOT NULL DEFAULT 0,
    best_rapport INTEGER NOT NULL DEFAULT 0,
    trust INTEGER NOT NULL DEFAULT 0,
    goals_json TEXT NOT NULL DEFAULT '[]',
    updated_at_ms BIGINT NOT NULL,
    PRIMARY KEY (player_id, npc_id)
)`,
}

const selectColumns = `player_id, npc_id, conversations, successes, failures, abandoned, best_rapport, trust, goals_json, updated_at_ms`

type sqlService struct {
	db *storage.DB
}

// NewSQLService migrates the standing table on db. The caller owns db.
func NewSQLService(ctx context.Context, db *storage.DB) (Service, error) {
	if err := db.Migrate(ctx, sqliteSchema, postgresSchema); err != nil {
		return nil, fmt.Errorf("standing schema: %w", err)
	}
	return &sqlService{db: db}, nil
}

func (s *sqlService) Close() error { return nil }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStanding(row rowScanner) (*Standing, error) {
	var (
		st        Standing
		goalsJSON string
		updatedMs int64
	)
	if err := row.Scan(&st.PlayerID, &st.NPCID, &st.Conversations, &st.Successes, &st.Failures,
		&st.Abandoned, &st.BestRapport, &st.Trust, &goalsJSON, &updatedMs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(goalsJSON), &st.GoalsCompleted); err != nil {
		return nil, fmt.Errorf("goals of %s: %w", st.NPCID, err)
	}
	if st.GoalsCompleted == nil {
		st.GoalsCompleted = []string{}
	}
	st.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &st, nil
}

func (s *sqlService) Get(ctx context.Context, playerID uint64, npcID string) (*Standing, error) {
	st, err := scanStanding(s.db.QueryRowContext(ctx, s.db.Rebind(`
SELECT `+selectColumns+` FROM npc_standing WHERE player_id = ? AND npc_id = ?
`), playerID, npcID))
	if errors.Is(err, sql.ErrNoRows) {
		return emptyStanding(playerID, npcID), nil
	}
	return st, err
}

func (s *sqlService) List(ctx context.Context, playerID uint64) ([]Standing, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
SELECT `+selectColumns+` FROM npc_standing WHERE player_id = ? ORDER BY npc_id
`), playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Standing, 0)
	for rows.Next() {
		st, err := scanStanding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *sqlService) Apply(ctx context.Context, playerID uint64, npcID string, outcome *conversation.Outcome) (*Standing, error) {
	if playerID == 0 || npcID == "" {
		return nil, fmt.Errorf("invalid standing key %d/%q", playerID, npcID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `SELECT ` + selectColumns + ` FROM npc_standing WHERE player_id = ? AND npc_id = ?`
	if s.db.Dialect == storage.Postgres {
		query += "\nFOR UPDATE"
	}
	st, err := scanStanding(tx.QueryRowContext(ctx, s.db.Rebind(query), playerID, npcID))
	if errors.Is(err, sql.ErrNoRows) {
		st, err = emptyStanding(playerID, npcID), nil
	}
	if err != nil {
		return nil, err
	}
	if err := apply(st, outcome, time.Now()); err != nil {
		return nil, err
	}
	goalsJSON, err := json.Marshal(st.GoalsCompleted)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
INSERT INTO npc_standing (player_id, npc_id, conversations, successes, failures, abandoned, best_rapport, trust, goals_json, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (player_id, npc_id) DO UPDATE SET
    conversations = excluded.conversations,
    successes = excluded.successes,
    failures = excluded.failures,
    abandoned = excluded.abandoned,
    best_rapport = excluded.best_rapport,
    trust = excluded.trust,
    goals_json = excluded.goals_json,
    updated_at_ms = excluded.updated_at_ms
`), playerID, npcID, st.Conversations, st.Successes, st.Failures, st.Abandoned,
		st.BestRapport, st.Trust, string(goalsJSON), st.UpdatedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return st, nil
}
