package suggest

import (
	"time"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/config"
)

// Config exposes a stable wrapper for engine configuration in package mode.
// Zero values keep the built-in defaults.
type Config struct {
	DefaultMaxResults int
	CacheTTL          time.Duration
	ScoringStrategy   string
	ReasonMode        string
	ReasonSeed        int64

	// DatabaseURL enables libSQL persistence; feedback is stored there too.
	DatabaseURL string
	AuthToken   string

	// RemoteURL enables the remote ranking backend.
	RemoteURL     string
	RemoteAPIKey  string
	RemoteTimeout time.Duration
}

func (c *Config) toInternal() *config.Config {
	cfg := config.Default()
	if c == nil {
		return cfg
	}
	if c.DefaultMaxResults > 0 {
		cfg.Suggestions.DefaultMaxResults = c.DefaultMaxResults
	}
	if c.CacheTTL > 0 {
		cfg.Suggestions.CacheTTL = c.CacheTTL
	}
	if c.ScoringStrategy != "" {
		cfg.Suggestions.ScoringStrategy = c.ScoringStrategy
	}
	if c.ReasonMode != "" {
		cfg.Suggestions.ReasonMode = c.ReasonMode
	}
	cfg.Suggestions.ReasonSeed = c.ReasonSeed
	if c.DatabaseURL != "" {
		cfg.Database.Enabled = true
		cfg.Database.URL = c.DatabaseURL
		cfg.Database.AuthToken = c.AuthToken
		cfg.Feedback.Sink = config.BackendLibSQL
	}
	if c.RemoteURL != "" {
		cfg.Remote.Backend = config.BackendHTTP
		cfg.Remote.BaseURL = c.RemoteURL
		cfg.Remote.APIKey = c.RemoteAPIKey
		if c.RemoteTimeout > 0 {
			cfg.Remote.Timeout = c.RemoteTimeout
		}
	}
	return cfg
}
