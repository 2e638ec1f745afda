package auth

import (
	"context"
	"time"

	"parley-lite/apps/server/internal/storage"
)

// NewService returns the SQL store when db is set, otherwise the in-memory
// one. The mode string is for logging.
func NewService(ctx context.Context, db *storage.DB, sessionTTL time.Duration) (Service, string, error) {
	if db == nil {
		return NewMemoryStore(sessionTTL), "memory", nil
	}
	store, err := NewSQLStore(ctx, db, sessionTTL)
	if err != nil {
		return nil, "", err
	}
	return store, db.Dialect.String(), nil
}
