// Package config loads runtime configuration: defaults, then an optional YAML
// file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy and backend names accepted by Validate.
const (
	ScoringComposite = "composite"
	ScoringLegacy    = "legacy"

	ReasonDeterministic = "deterministic"
	ReasonRandom        = "random"

	BackendNone   = "none"
	BackendHTTP   = "http"
	BackendLibSQL = "libsql"

	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Config is the full runtime configuration.
type Config struct {
	Environment string      `yaml:"environment"`
	LogLevel    string      `yaml:"logLevel"`
	Suggestions Suggestions `yaml:"suggestions"`
	Remote      Remote      `yaml:"remote"`
	Feedback    Feedback    `yaml:"feedback"`
	Database    Database    `yaml:"database"`
	Metrics     Metrics     `yaml:"metrics"`
	Server      Server      `yaml:"server"`
}

// Suggestions tunes the engine itself.
type Suggestions struct {
	DefaultMaxResults   int           `yaml:"defaultMaxResults"`
	MaxResultsLimit     int           `yaml:"maxResultsLimit"`
	CacheTTL            time.Duration `yaml:"cacheTTL"`
	CacheSweepThreshold int           `yaml:"cacheSweepThreshold"`
	ScoringStrategy     string        `yaml:"scoringStrategy"`
	ReasonMode          string        `yaml:"reasonMode"`
	ReasonSeed          int64         `yaml:"reasonSeed"`
}

// Remote configures the optional external ranking backend.
type Remote struct {
	Backend string        `yaml:"backend"`
	BaseURL string        `yaml:"baseURL"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
	Breaker Breaker       `yaml:"breaker"`
}

// Breaker configures the circuit breaker around remote calls.
type Breaker struct {
	MaxRequests  uint32        `yaml:"maxRequests"`
	Interval     time.Duration `yaml:"interval"`
	OpenTimeout  time.Duration `yaml:"openTimeout"`
	MinRequests  uint32        `yaml:"minRequests"`
	FailureRatio float64       `yaml:"failureRatio"`
}

// Feedback configures where feedback and interactions are persisted.
type Feedback struct {
	Sink    string        `yaml:"sink"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Database configures the libSQL store.
type Database struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	AuthToken      string `yaml:"authToken"`
	MaxOpenConns   int    `yaml:"maxOpenConns"`
	MaxIdleConns   int    `yaml:"maxIdleConns"`
	ConnMaxIdleSec int    `yaml:"connMaxIdleSec"`
	ConnMaxLifeSec int    `yaml:"connMaxLifeSec"`
}

// Metrics configures the Prometheus exporter.
type Metrics struct {
	Prometheus bool   `yaml:"prometheus"`
	Addr       string `yaml:"addr"`
}

// Server configures the MCP and REST listeners.
type Server struct {
	Transport   string `yaml:"transport"`
	Addr        string `yaml:"addr"`
	SSEEndpoint string `yaml:"sseEndpoint"`
	HTTPAddr    string `yaml:"httpAddr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Suggestions: Suggestions{
			DefaultMaxResults:   10,
			MaxResultsLimit:     100,
			CacheTTL:            5 * time.Minute,
			CacheSweepThreshold: 100,
			ScoringStrategy:     ScoringComposite,
			ReasonMode:          ReasonDeterministic,
		},
		Remote: Remote{
			Backend: BackendNone,
			Timeout: 2 * time.Second,
			Breaker: Breaker{
				MaxRequests:  1,
				Interval:     time.Minute,
				OpenTimeout:  30 * time.Second,
				MinRequests:  5,
				FailureRatio: 0.6,
			},
		},
		Feedback: Feedback{
			Sink:    BackendNone,
			Timeout: 5 * time.Second,
		},
		Database: Database{
			URL: "file:./suggest.db",
		},
		Metrics: Metrics{
			Addr: ":9090",
		},
		Server: Server{
			Transport:   TransportStdio,
			Addr:        ":8080",
			SSEEndpoint: "/sse",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when path
// is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables; lookup is injectable for tests.
func (c *Config) applyEnv(lookup func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := lookup(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := lookup(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("APP_ENV", &c.Environment)
	str("LOG_LEVEL", &c.LogLevel)

	dur("SUGGEST_CACHE_TTL", &c.Suggestions.CacheTTL)
	if v := lookup("SUGGEST_MAX_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SUGGEST_MAX_RESULTS: %w", err))
		} else {
			c.Suggestions.DefaultMaxResults = n
		}
	}
	str("SCORING_STRATEGY", &c.Suggestions.ScoringStrategy)
	str("REASON_MODE", &c.Suggestions.ReasonMode)
	if v := lookup("REASON_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("REASON_SEED: %w", err))
		} else {
			c.Suggestions.ReasonSeed = n
		}
	}

	str("REMOTE_BACKEND", &c.Remote.Backend)
	str("REMOTE_SUGGESTIONS_URL", &c.Remote.BaseURL)
	str("REMOTE_API_KEY", &c.Remote.APIKey)
	dur("REMOTE_TIMEOUT", &c.Remote.Timeout)
	// A URL alone implies the HTTP backend.
	if c.Remote.BaseURL != "" && lookup("REMOTE_BACKEND") == "" && c.Remote.Backend == BackendNone {
		c.Remote.Backend = BackendHTTP
	}

	str("FEEDBACK_SINK", &c.Feedback.Sink)
	str("FEEDBACK_URL", &c.Feedback.URL)

	if v := lookup("LIBSQL_URL"); v != "" {
		c.Database.URL = v
		c.Database.Enabled = true
	}
	str("LIBSQL_AUTH_TOKEN", &c.Database.AuthToken)

	boolean("METRICS_PROMETHEUS", &c.Metrics.Prometheus)
	str("METRICS_ADDR", &c.Metrics.Addr)
	str("HTTP_ADDR", &c.Server.HTTPAddr)

	return errors.Join(errs...)
}

// Validate rejects unknown strategy names and non-positive limits.
func (c *Config) Validate() error {
	var errs []error
	s := c.Suggestions
	if s.DefaultMaxResults <= 0 {
		errs = append(errs, errors.New("suggestions.defaultMaxResults must be positive"))
	}
	if s.MaxResultsLimit < s.DefaultMaxResults {
		errs = append(errs, errors.New("suggestions.maxResultsLimit must be >= defaultMaxResults"))
	}
	if s.CacheTTL <= 0 {
		errs = append(errs, errors.New("suggestions.cacheTTL must be positive"))
	}
	if s.CacheSweepThreshold <= 0 {
		errs = append(errs, errors.New("suggestions.cacheSweepThreshold must be positive"))
	}
	if !oneOf(s.ScoringStrategy, ScoringComposite, ScoringLegacy) {
		errs = append(errs, fmt.Errorf("unknown scoring strategy %q", s.ScoringStrategy))
	}
	if !oneOf(s.ReasonMode, ReasonDeterministic, ReasonRandom) {
		errs = append(errs, fmt.Errorf("unknown reason mode %q", s.ReasonMode))
	}

	switch c.Remote.Backend {
	case BackendNone:
	case BackendHTTP:
		if c.Remote.BaseURL == "" {
			errs = append(errs, errors.New("remote.baseURL is required for the http backend"))
		}
		if c.Remote.Timeout <= 0 {
			errs = append(errs, errors.New("remote.timeout must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown remote backend %q", c.Remote.Backend))
	}

	switch c.Feedback.Sink {
	case BackendNone:
	case BackendHTTP:
		if c.Feedback.URL == "" {
			errs = append(errs, errors.New("feedback.url is required for the http sink"))
		}
		if c.Feedback.Timeout <= 0 {
			errs = append(errs, errors.New("feedback.timeout must be positive"))
		}
	case BackendLibSQL:
		if !c.Database.Enabled {
			errs = append(errs, errors.New("feedback.sink libsql requires database.enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown feedback sink %q", c.Feedback.Sink))
	}

	if !oneOf(c.Server.Transport, TransportStdio, TransportSSE) {
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Server.Transport))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
