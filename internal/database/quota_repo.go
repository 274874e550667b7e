package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/olegsv/twmentions/pkg/models"
)

// CreateQuota creates a quota record for an account
func (db *DB) CreateQuota(ctx context.Context, quota *models.Quota) error {
	query := `
		INSERT INTO quotas (account_id, count_daily, limit_daily, count_total, limit_total, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		quota.AccountID,
		quota.CountDaily,
		quota.LimitDaily,
		quota.CountTotal,
		quota.LimitTotal,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create quota: %w", err)
	}

	quota.UpdatedAt = now
	return nil
}

// GetQuota returns the quota record for an account. Callers must treat
// ErrNotFound as "no quota available" rather than provisioning a default.
func (db *DB) GetQuota(ctx context.Context, accountID string) (*models.Quota, error) {
	var quota models.Quota
	query := `SELECT * FROM quotas WHERE account_id = ?`
	err := db.GetContext(ctx, &quota, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}
	return &quota, nil
}

// ConsumeQuota increments both the daily and total counters by one unit.
// One unit is one successful polling-and-reply cycle.
func (db *DB) ConsumeQuota(ctx context.Context, accountID string) error {
	query := `UPDATE quotas SET count_daily = count_daily + 1, count_total = count_total + 1, updated_at = ? WHERE account_id = ?`
	result, err := db.ExecContext(ctx, query, time.Now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to consume quota: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetDailyQuotas zeroes the daily counter for rows last touched before the
// current UTC day. Rows already counted today are left alone, so running the
// reset again within the same day (for example after a process restart) does
// not re-open exhausted quotas.
func (db *DB) ResetDailyQuotas(ctx context.Context) error {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	query := `UPDATE quotas SET count_daily = 0, updated_at = ? WHERE count_daily > 0 AND datetime(updated_at) < datetime(?)`
	_, err := db.ExecContext(ctx, query, time.Now(), dayStart)
	if err != nil {
		return fmt.Errorf("failed to reset daily quotas: %w", err)
	}
	return nil
}
