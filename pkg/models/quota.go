package models

import "time"

// Quota tracks per-account Twitter usage against daily and lifetime limits.
// One unit is one polling-and-reply cycle, not one mention.
type Quota struct {
	AccountID  string    `db:"account_id"`
	CountDaily int       `db:"count_daily"`
	LimitDaily int       `db:"limit_daily"`
	CountTotal int       `db:"count_total"`
	LimitTotal int       `db:"limit_total"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// HasTwitterQuota reports whether both counters are strictly below their limits
func (q *Quota) HasTwitterQuota() bool {
	return q.CountDaily < q.LimitDaily && q.CountTotal < q.LimitTotal
}
