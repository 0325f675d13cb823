package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Sources  SourcesConfig  `yaml:"sources"`
	Flavors  FlavorsConfig  `yaml:"flavors"`
	Judge    JudgeConfig    `yaml:"judge"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// ScheduleConfig configures the periodic collect-and-analyze job.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// SourcesConfig holds configuration for all comment sources.
type SourcesConfig struct {
	Reddit RedditConfig `yaml:"reddit"`
	RSS    RSSConfig    `yaml:"rss"`
	Amazon AmazonConfig `yaml:"amazon"`
}

// RedditConfig for the Reddit collector.
type RedditConfig struct {
	Enabled         bool     `yaml:"enabled"`
	ClientID        string   `yaml:"client_id"`
	ClientSecret    string   `yaml:"client_secret"`
	Subreddits      []string `yaml:"subreddits"`
	Queries         []string `yaml:"queries"`
	Limit           int      `yaml:"limit"`
	SinceDays       int      `yaml:"since_days"`
	IncludeComments bool     `yaml:"include_comments"`
}

// RSSConfig for the feed collector.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// AmazonConfig for the RapidAPI review collector.
type AmazonConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIKey     string   `yaml:"api_key"`
	ProductIDs []string `yaml:"product_ids"`
	MaxReviews int      `yaml:"max_reviews"`
}

// FlavorsConfig extends the built-in flavor vocabulary.
type FlavorsConfig struct {
	Extra []FlavorEntry `yaml:"extra"`
}

// FlavorEntry is a canonical flavor and the spellings that map to it.
type FlavorEntry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// JudgeConfig configures the LLM judge.
type JudgeConfig struct {
	Provider  string        `yaml:"provider"` // "openai" or "anthropic"
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"` // custom endpoint (optional)
	BatchSize int           `yaml:"batch_size"`
	Brands    []BrandConfig `yaml:"brands"`
}

// BrandConfig is a product line the judge may assign flavors to.
type BrandConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ScoringConfig configures ranking.
type ScoringConfig struct {
	Weights         WeightsConfig `yaml:"weights"`
	DaysLookback    int           `yaml:"days_lookback"`
	RejectThreshold float64       `yaml:"reject_threshold"`
	AlertMinScore   float64       `yaml:"alert_min_score"`
}

// WeightsConfig holds the relative signal weights.
type WeightsConfig struct {
	Frequency float64 `yaml:"frequency"`
	Sentiment float64 `yaml:"sentiment"`
	Recency   float64 `yaml:"recency"`
	BrandFit  float64 `yaml:"brand_fit"`
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./flavorscout.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Schedule: ScheduleConfig{Cron: "@every 6h"},
		Sources: SourcesConfig{
			Reddit: RedditConfig{
				Enabled:         true,
				Limit:           50,
				SinceDays:       30,
				IncludeComments: true,
			},
			RSS:    RSSConfig{Enabled: false},
			Amazon: AmazonConfig{Enabled: false, MaxReviews: 100},
		},
		Judge: JudgeConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			BatchSize: 20,
		},
		Scoring: ScoringConfig{
			Weights:         WeightsConfig{Frequency: 0.30, Sentiment: 0.30, Recency: 0.20, BrandFit: 0.20},
			DaysLookback:    90,
			RejectThreshold: 30,
			AlertMinScore:   60,
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// A .env file in the working directory, if present, feeds the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // ignore missing .env

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLAVORSCOUT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		cfg.Sources.Reddit.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		cfg.Sources.Reddit.ClientSecret = v
	}
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" {
		cfg.Sources.Amazon.APIKey = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Judge.APIKey == "" {
		cfg.Judge.APIKey = v
		cfg.Judge.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Judge.APIKey == "" {
		cfg.Judge.APIKey = v
		cfg.Judge.Provider = "anthropic"
		if cfg.Judge.Model == "gpt-4o-mini" {
			cfg.Judge.Model = ""
		}
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	w := c.Scoring.Weights
	if w.Frequency < 0 || w.Sentiment < 0 || w.Recency < 0 || w.BrandFit < 0 {
		errs = append(errs, errors.New("scoring.weights must not be negative"))
	}
	if c.Scoring.RejectThreshold < 0 {
		errs = append(errs, fmt.Errorf("scoring.reject_threshold must not be negative, got %g", c.Scoring.RejectThreshold))
	}
	if c.Scoring.DaysLookback <= 0 {
		errs = append(errs, fmt.Errorf("scoring.days_lookback must be positive, got %d", c.Scoring.DaysLookback))
	}
	switch c.Judge.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("judge.provider %q is not one of openai, anthropic", c.Judge.Provider))
	}
	if c.Judge.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("judge.batch_size must be positive, got %d", c.Judge.BatchSize))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}
