package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/olegsv/twmentions/pkg/models"
)

const (
	cursorPlugin  = "twitter"
	cursorPurpose = "entrypoint"
)

// GetCursor returns the last processed tweet ID for an account.
// ErrNotFound means no prior high-water mark exists.
func (db *DB) GetCursor(ctx context.Context, accountID string) (string, error) {
	var cursor models.Cursor
	query := `SELECT * FROM cursors WHERE account_id = ? AND plugin = ? AND purpose = ?`
	err := db.GetContext(ctx, &cursor, query, accountID, cursorPlugin, cursorPurpose)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor: %w", err)
	}
	return cursor.LastTweetID, nil
}

// SetCursor overwrites the last processed tweet ID for an account.
// Last-writer-wins; callers must not run overlapping cycles for one account.
func (db *DB) SetCursor(ctx context.Context, accountID, lastTweetID string) error {
	query := `
		INSERT INTO cursors (account_id, plugin, purpose, last_tweet_id, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account_id, plugin, purpose) DO UPDATE SET last_tweet_id = excluded.last_tweet_id, updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query, accountID, cursorPlugin, cursorPurpose, lastTweetID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}
