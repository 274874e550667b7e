package database

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    twitter_enabled BOOLEAN DEFAULT false,
    bearer_token TEXT NOT NULL DEFAULT '',
    consumer_key TEXT NOT NULL DEFAULT '',
    consumer_secret TEXT NOT NULL DEFAULT '',
    access_token TEXT NOT NULL DEFAULT '',
    access_token_secret TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS quotas (
    account_id TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
    count_daily INTEGER NOT NULL DEFAULT 0,
    limit_daily INTEGER NOT NULL DEFAULT 0,
    count_total INTEGER NOT NULL DEFAULT 0,
    limit_total INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cursors (
    account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    plugin TEXT NOT NULL,
    purpose TEXT NOT NULL,
    last_tweet_id TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (account_id, plugin, purpose)
);

CREATE INDEX IF NOT EXISTS idx_accounts_twitter ON accounts(twitter_enabled);
`
