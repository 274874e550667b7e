package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/olegsv/twmentions/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// CreateAccount creates a new managed account
func (db *DB) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, name, twitter_enabled, bearer_token, consumer_key, consumer_secret, access_token, access_token_secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.TwitterEnabled,
		account.BearerToken,
		account.ConsumerKey,
		account.ConsumerSecret,
		account.AccessToken,
		account.AccessTokenSecret,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// GetAccountByID returns an account by ID
func (db *DB) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	query := `SELECT * FROM accounts WHERE id = ?`
	err := db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetTwitterAccounts returns all accounts with the Twitter integration
// enabled and a credential bundle present
func (db *DB) GetTwitterAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	query := `SELECT * FROM accounts WHERE twitter_enabled = true AND bearer_token != '' ORDER BY created_at`
	err := db.SelectContext(ctx, &accounts, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get twitter accounts: %w", err)
	}
	return accounts, nil
}

// SetTwitterEnabled toggles the Twitter integration for an account
func (db *DB) SetTwitterEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE accounts SET twitter_enabled = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, enabled, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set twitter enabled: %w", err)
	}
	return nil
}

// DeleteAccount deletes an account
func (db *DB) DeleteAccount(ctx context.Context, id string) error {
	query := `DELETE FROM accounts WHERE id = ?`
	_, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}
