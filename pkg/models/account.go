package models

import "time"

// Account represents a managed Twitter account the bot replies on behalf of
type Account struct {
	ID                string    `db:"id"`
	Name              string    `db:"name"`
	TwitterEnabled    bool      `db:"twitter_enabled"`
	BearerToken       string    `db:"bearer_token"`
	ConsumerKey       string    `db:"consumer_key"`
	ConsumerSecret    string    `db:"consumer_secret"`
	AccessToken       string    `db:"access_token"`
	AccessTokenSecret string    `db:"access_token_secret"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Credentials is the opaque credential bundle handed to the Twitter client
// factory. The core never inspects individual fields beyond Valid().
type Credentials struct {
	BearerToken       string
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Credentials extracts the credential bundle from the account record
func (a *Account) Credentials() Credentials {
	return Credentials{
		BearerToken:       a.BearerToken,
		ConsumerKey:       a.ConsumerKey,
		ConsumerSecret:    a.ConsumerSecret,
		AccessToken:       a.AccessToken,
		AccessTokenSecret: a.AccessTokenSecret,
	}
}

// Valid reports whether the bundle is usable for API calls
func (c Credentials) Valid() bool {
	return c.BearerToken != ""
}
