package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"FLAVORSCOUT_DB_PATH", "LOG_LEVEL", "REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET",
		"RAPIDAPI_KEY", "SLACK_WEBHOOK_URL", "DISCORD_WEBHOOK_URL", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./flavorscout.db", cfg.Database.Path)
	assert.Equal(t, "@every 6h", cfg.Schedule.Cron)
	assert.Equal(t, 90, cfg.Scoring.DaysLookback)
	assert.Equal(t, 30.0, cfg.Scoring.RejectThreshold)
	assert.Equal(t, 0.30, cfg.Scoring.Weights.Frequency)
	assert.Equal(t, 20, cfg.Judge.BatchSize)
	assert.True(t, cfg.Sources.Reddit.Enabled)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLAVORSCOUT_DB_PATH", "/tmp/override.db")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.test/x")

	path := writeConfig(t, `
database:
  path: ./from-file.db
scoring:
  weights:
    frequency: 3
    sentiment: 3
    recency: 2
    brand_fit: 2
  days_lookback: 30
  reject_threshold: 25
flavors:
  extra:
    - name: kesar pista
      aliases: [kesar-pista]
sources:
  rss:
    enabled: true
    feeds:
      - name: Fitness Blog
        url: https://example.test/feed.xml
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, 3.0, cfg.Scoring.Weights.Frequency)
	assert.Equal(t, 30, cfg.Scoring.DaysLookback)
	assert.Equal(t, 25.0, cfg.Scoring.RejectThreshold)
	require.Len(t, cfg.Flavors.Extra, 1)
	assert.Equal(t, []string{"kesar-pista"}, cfg.Flavors.Extra[0].Aliases)
	require.Len(t, cfg.Sources.RSS.Feeds, 1)
	assert.True(t, cfg.Sources.RSS.Enabled)

	assert.Equal(t, "anthropic", cfg.Judge.Provider)
	assert.Equal(t, "sk-ant", cfg.Judge.APIKey)
	assert.Empty(t, cfg.Judge.Model)
	assert.True(t, cfg.Alerts.Slack.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "negative weight", mutate: func(c *Config) { c.Scoring.Weights.Recency = -1 }, wantErr: "must not be negative"},
		{name: "zero threshold", mutate: func(c *Config) { c.Scoring.RejectThreshold = 0 }},
		{name: "negative threshold", mutate: func(c *Config) { c.Scoring.RejectThreshold = -1 }, wantErr: "reject_threshold"},
		{name: "zero lookback", mutate: func(c *Config) { c.Scoring.DaysLookback = 0 }, wantErr: "days_lookback"},
		{name: "unknown provider", mutate: func(c *Config) { c.Judge.Provider = "cohere" }, wantErr: "judge.provider"},
		{name: "zero batch", mutate: func(c *Config) { c.Judge.BatchSize = 0 }, wantErr: "batch_size"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Scoring.DaysLookback = -5
	cfg.Judge.BatchSize = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "days_lookback")
	assert.Contains(t, err.Error(), "batch_size")
}
