package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parley-lite/apps/server/internal/storage"
)

var sqliteSchema = []string{
	`
CREATE TABLE IF NOT EXISTS conversation_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    player_id INTEGER NOT NULL,
    source TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    npc_id TEXT NOT NULL,
    played_at_ms INTEGER NOT NULL,
    is_saved INTEGER NOT NULL DEFAULT 0,
    saved_at_ms INTEGER,
    summary_json TEXT NOT NULL,
    tape_json TEXT NOT NULL DEFAULT '[]',
    UNIQUE(player_id, source, conversation_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_history_recent ON conversation_history(player_id, source, is_saved, played_at_ms DESC, id DESC)`,
}

var postgresSchema = []string{
	`
CREATE TABLE IF NOT EXISTS conversation_history (
    id BIGSERIAL PRIMARY KEY,
    player_id BIGINT NOT NULL,
    source TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    npc_id TEXT NOT NULL,
    played_at_ms BIGINT NOT NULL,
    is_saved BOOLEAN NOT NULL DEFAULT FALSE,
    saved_at_ms BIGINT,
    summary_json TEXT NOT NULL,
    tape_json TEXT NOT NULL DEFAULT '[]',
    UNIQUE(player_id, source, conversation_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_history_recent ON conversation_history(player_id, source, is_saved, played_at_ms DESC, id DESC)`,
}

type sqlService struct {
	db     *storage.DB
	limits Limits
}

// NewSQLService migrates the history table on db. The caller owns db.
func NewSQLService(ctx context.Context, db *storage.DB, limits Limits) (Service, error) {
	if err := db.Migrate(ctx, sqliteSchema, postgresSchema); err != nil {
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &sqlService{db: db, limits: limits.withDefaults()}, nil
}

func (s *sqlService) Close() error { return nil }

func (s *sqlService) Record(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	summaryJSON, err := json.Marshal(rec.Summary)
	if err != nil {
		return err
	}
	events := rec.Events
	if events == nil {
		events = []EventItem{}
	}
	tapeJSON, err := json.Marshal(events)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
INSERT INTO conversation_history (player_id, source, conversation_id, npc_id, played_at_ms, summary_json, tape_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (player_id, source, conversation_id) DO UPDATE SET
    npc_id = excluded.npc_id,
    played_at_ms = excluded.played_at_ms,
    summary_json = excluded.summary_json,
    tape_json = excluded.tape_json
`), rec.PlayerID, string(rec.Source), rec.ConversationID, rec.NPCID, rec.PlayedAt.UnixMilli(), string(summaryJSON), string(tapeJSON)); err != nil {
		return err
	}
	if err := s.trimTx(ctx, tx, rec.PlayerID, rec.Source); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqlService) ListRecent(ctx context.Context, playerID uint64, source Source, limit int) ([]HistoryItem, error) {
	if !isSource(source) {
		return nil, fmt.Errorf("invalid source %q", source)
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
SELECT conversation_id, npc_id, played_at_ms, is_saved, saved_at_ms, summary_json
FROM conversation_history
WHERE player_id = ? AND source = ?
ORDER BY played_at_ms DESC, id DESC
LIMIT ?
`), playerID, string(source), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]HistoryItem, 0)
	for rows.Next() {
		var (
			item        HistoryItem
			playedAtMs  int64
			savedAtMs   sql.NullInt64
			summaryJSON string
		)
		if err := rows.Scan(&item.ConversationID, &item.NPCID, &playedAtMs, &item.IsSaved, &savedAtMs, &summaryJSON); err != nil {
			return nil, err
		}
		item.Source = source
		item.PlayedAt = time.UnixMilli(playedAtMs).UTC()
		if savedAtMs.Valid {
			t := time.UnixMilli(savedAtMs.Int64).UTC()
			item.SavedAt = &t
		}
		if err := json.Unmarshal([]byte(summaryJSON), &item.Summary); err != nil {
			return nil, fmt.Errorf("summary of %s: %w", item.ConversationID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *sqlService) GetEvents(ctx context.Context, playerID uint64, source Source, conversationID string) ([]EventItem, error) {
	var tapeJSON string
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
SELECT tape_json FROM conversation_history
WHERE player_id = ? AND source = ? AND conversation_id = ?
`), playerID, string(source), conversationID).Scan(&tapeJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var events []EventItem
	if err := json.Unmarshal([]byte(tapeJSON), &events); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}

func (s *sqlService) SetSaved(ctx context.Context, playerID uint64, source Source, conversationID string, saved bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var isSaved bool
	err = tx.QueryRowContext(ctx, s.db.Rebind(`
SELECT is_saved FROM conversation_history
WHERE player_id = ? AND source = ? AND conversation_id = ?
`), playerID, string(source), conversationID).Scan(&isSaved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if isSaved == saved {
		return nil
	}

	if saved {
		var count int
		if err := tx.QueryRowContext(ctx, s.db.Rebind(`
SELECT COUNT(1) FROM conversation_history
WHERE player_id = ? AND source = ? AND is_saved = ?
`), playerID, string(source), true).Scan(&count); err != nil {
			return err
		}
		if count >= s.limits.Saved {
			return ErrSavedLimitReach
		}
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`
UPDATE conversation_history SET is_saved = ?, saved_at_ms = ?
WHERE player_id = ? AND source = ? AND conversation_id = ?
`), true, storage.NowMs(), playerID, string(source), conversationID); err != nil {
			return err
		}
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
UPDATE conversation_history SET is_saved = ?, saved_at_ms = NULL
WHERE player_id = ? AND source = ? AND conversation_id = ?
`), false, playerID, string(source), conversationID); err != nil {
		return err
	}
	if err := s.trimTx(ctx, tx, playerID, source); err != nil {
		return err
	}
	return tx.Commit()
}

// trimTx drops unsaved rows past the recent limit, newest kept.
func (s *sqlService) trimTx(ctx context.Context, tx *sql.Tx, playerID uint64, source Source) error {
	if s.limits.Recent == 0 {
		return nil
	}
	rows, err := tx.QueryContext(ctx, s.db.Rebind(`
SELECT id FROM conversation_history
WHERE player_id = ? AND source = ? AND is_saved = ?
ORDER BY played_at_ms DESC, id DESC
`), playerID, string(source), false)
	if err != nil {
		return err
	}
	var stale []int64
	for n := 0; rows.Next(); n++ {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if n >= s.limits.Recent {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM conversation_history WHERE id = ?`), id); err != nil {
			return err
		}
	}
	return nil
}
