package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Suggestions.DefaultMaxResults)
	assert.Equal(t, 5*time.Minute, cfg.Suggestions.CacheTTL)
	assert.Equal(t, 100, cfg.Suggestions.CacheSweepThreshold)
	assert.Equal(t, ScoringComposite, cfg.Suggestions.ScoringStrategy)
	assert.Equal(t, BackendNone, cfg.Remote.Backend)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suggest.yaml")
	yml := `
environment: production
suggestions:
  cacheTTL: 90s
  scoringStrategy: legacy
remote:
  backend: http
  baseURL: http://ranker.local/rank
  timeout: 750ms
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("SUGGEST_MAX_RESULTS", "25")
	t.Setenv("REMOTE_TIMEOUT", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 90*time.Second, cfg.Suggestions.CacheTTL)
	assert.Equal(t, ScoringLegacy, cfg.Suggestions.ScoringStrategy)
	assert.Equal(t, 25, cfg.Suggestions.DefaultMaxResults)
	assert.Equal(t, BackendHTTP, cfg.Remote.Backend)
	assert.Equal(t, time.Second, cfg.Remote.Timeout)
	// untouched defaults survive a partial file
	assert.Equal(t, 100, cfg.Suggestions.MaxResultsLimit)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"REMOTE_SUGGESTIONS_URL": "http://ranker",
		"LIBSQL_URL":             "file:/tmp/x.db",
		"FEEDBACK_SINK":          "libsql",
		"METRICS_PROMETHEUS":     "true",
		"REASON_SEED":            "42",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendHTTP, cfg.Remote.Backend)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "file:/tmp/x.db", cfg.Database.URL)
	assert.True(t, cfg.Metrics.Prometheus)
	assert.Equal(t, int64(42), cfg.Suggestions.ReasonSeed)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"SUGGEST_CACHE_TTL":  "soon",
		"METRICS_PROMETHEUS": "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUGGEST_CACHE_TTL")
	assert.Contains(t, err.Error(), "METRICS_PROMETHEUS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown strategy", func(c *Config) { c.Suggestions.ScoringStrategy = "neural" }, "unknown scoring strategy"},
		{"zero ttl", func(c *Config) { c.Suggestions.CacheTTL = 0 }, "cacheTTL"},
		{"http remote without url", func(c *Config) { c.Remote.Backend = BackendHTTP }, "remote.baseURL"},
		{"libsql sink without database", func(c *Config) { c.Feedback.Sink = BackendLibSQL }, "database.enabled"},
		{"unknown sink", func(c *Config) { c.Feedback.Sink = "kafka" }, "unknown feedback sink"},
		{"unknown transport", func(c *Config) { c.Server.Transport = "grpc" }, "unknown transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
