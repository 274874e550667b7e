package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/twmentions.db"`

	// Polling
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"1m"`
	MentionLookback   time.Duration `env:"MENTION_LOOKBACK" envDefault:"24h"`
	MentionMaxResults int           `env:"MENTION_MAX_RESULTS" envDefault:"10"`

	// Twitter API
	TwitterAPIBaseURL string        `env:"TWITTER_API_BASE_URL" envDefault:"https://api.twitter.com"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// Response engine
	EngineURL     string        `env:"ENGINE_URL,required"`
	EngineTimeout time.Duration `env:"ENGINE_TIMEOUT" envDefault:"2m"`

	// When set, generated reply lines are logged at debug level before posting
	DebugResponses bool `env:"DEBUG_RESPONSES" envDefault:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.MentionMaxResults < 1 {
		return nil, fmt.Errorf("MENTION_MAX_RESULTS must be at least 1, got %d", cfg.MentionMaxResults)
	}

	return cfg, nil
}
