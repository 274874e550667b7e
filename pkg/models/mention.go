package models

import "time"

// Mention represents a tweet mentioning a managed account. Mentions are
// tick-scoped: fetched, replied to and discarded within one cycle.
type Mention struct {
	ID        string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// Cursor is the persisted high-water mark for one account's mention polling,
// keyed (account_id, plugin, purpose) so other integrations can store their
// own markers alongside it.
type Cursor struct {
	AccountID   string    `db:"account_id"`
	Plugin      string    `db:"plugin"`
	Purpose     string    `db:"purpose"`
	LastTweetID string    `db:"last_tweet_id"`
	UpdatedAt   time.Time `db:"updated_at"`
}
