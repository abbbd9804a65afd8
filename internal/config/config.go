package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/creatorboard/pkg/score"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Sources  SourcesConfig  `yaml:"sources"`
	Media    MediaConfig    `yaml:"media"`
	Scoring  score.Config   `yaml:"scoring"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the collect and scoring intervals.
type ScheduleConfig struct {
	CollectInterval string `yaml:"collect_interval"`
	ScoreInterval   string `yaml:"score_interval"`
}

// ParseCollectInterval returns the collect interval as time.Duration.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	return parseDuration(s.CollectInterval, 30*time.Minute)
}

// ParseScoreInterval returns the scoring interval as time.Duration.
func (s ScheduleConfig) ParseScoreInterval() time.Duration {
	return parseDuration(s.ScoreInterval, 10*time.Minute)
}

// SourcesConfig holds configuration for all data sources.
type SourcesConfig struct {
	X      XConfig      `yaml:"x"`
	Nitter NitterConfig `yaml:"nitter"`
	File   FileConfig   `yaml:"file"`
	Demo   DemoConfig   `yaml:"demo"`
}

// XConfig for the X API v2 collector.
type XConfig struct {
	Enabled     bool     `yaml:"enabled"`
	BaseURL     string   `yaml:"base_url"`
	BearerToken string   `yaml:"bearer_token"`
	Accounts    []string `yaml:"accounts"`
	MaxResults  int      `yaml:"max_results"`
	RPS         float64  `yaml:"rps"`
	Burst       int      `yaml:"burst"`
	MaxAttempts int      `yaml:"max_attempts"`
	BaseBackoff string   `yaml:"base_backoff"`
}

// ParseBaseBackoff returns the first retry delay.
func (x XConfig) ParseBaseBackoff() time.Duration {
	return parseDuration(x.BaseBackoff, 500*time.Millisecond)
}

// NitterConfig for the Nitter RSS collector.
type NitterConfig struct {
	Enabled   bool     `yaml:"enabled"`
	NitterURL string   `yaml:"nitter_url"`
	Accounts  []string `yaml:"accounts"`
	MaxAge    string   `yaml:"max_age"`
}

// ParseMaxAge returns how far back feed entries are kept. 0 keeps all.
func (n NitterConfig) ParseMaxAge() time.Duration {
	return parseDuration(n.MaxAge, 0)
}

// FileConfig for the JSON file collector.
type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DemoConfig for the built-in demo creators.
type DemoConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MediaConfig configures media analysis.
type MediaConfig struct {
	OCR OCRConfig `yaml:"ocr"`
}

// OCRConfig configures the external OCR service.
type OCRConfig struct {
	Enabled          bool   `yaml:"enabled"`
	URL              string `yaml:"url"`
	Lang             string `yaml:"lang"`
	Timeout          string `yaml:"timeout"`
	MaxImagesPerPost int    `yaml:"max_images_per_post"`
	BudgetPerRequest int    `yaml:"budget_per_request"`
}

// ParseTimeout returns the per-image OCR timeout.
func (o OCRConfig) ParseTimeout() time.Duration {
	return parseDuration(o.Timeout, 8*time.Second)
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	// TopN is the size of the leaderboard head watched for new entrants.
	TopN    int           `yaml:"top_n"`
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
	// MetricsAddr serves /metrics on a separate listener when set.
	MetricsAddr string `yaml:"metrics_addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./creatorboard.db"},
		Schedule: ScheduleConfig{
			CollectInterval: "30m",
			ScoreInterval:   "10m",
		},
		Sources: SourcesConfig{
			X: XConfig{
				BaseURL:     "https://api.twitter.com/2",
				MaxResults:  50,
				RPS:         2,
				Burst:       10,
				MaxAttempts: 5,
				BaseBackoff: "500ms",
			},
			Nitter: NitterConfig{
				NitterURL: "https://nitter.net",
				MaxAge:    "720h",
			},
			Demo: DemoConfig{Enabled: true},
		},
		Media: MediaConfig{
			OCR: OCRConfig{
				Lang:             "eng",
				Timeout:          "8s",
				MaxImagesPerPost: 2,
				BudgetPerRequest: 3,
			},
		},
		Scoring: score.DefaultConfig(),
		Alerts:  AlertsConfig{TopN: 10},
		Server:  ServerConfig{Port: 8080},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads .env files, then the YAML file, then applies env var
// overrides. Variables already set in the process win over .env values.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := LoadEnv(envFiles...); err != nil {
		return nil, err
	}

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
	return cfg, nil
}

// LoadEnv loads the given .env files, skipping missing ones. With no
// arguments it tries ./.env.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load env file %s: %w", file, err)
		}
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CREATORBOARD_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := firstEnv("X_BEARER_TOKEN", "TWITTER_BEARER_TOKEN"); v != "" {
		cfg.Sources.X.BearerToken = v
	}
	if v, ok := envFloat("X_API_RPS"); ok {
		cfg.Sources.X.RPS = v
	}
	if v, ok := envInt("X_API_BURST"); ok {
		cfg.Sources.X.Burst = v
	}
	if v, ok := envInt("X_API_MAX_ATTEMPTS"); ok {
		cfg.Sources.X.MaxAttempts = v
	}
	if v := os.Getenv("OCR_URL"); v != "" {
		cfg.Media.OCR.URL = v
		cfg.Media.OCR.Enabled = true
	}
	if v := os.Getenv("ENABLE_IMAGE_OCR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Media.OCR.Enabled = b
		}
	}
	if v := os.Getenv("OCR_LANG"); v != "" {
		cfg.Media.OCR.Lang = v
	}
	if v, ok := envInt("OCR_TIMEOUT_MS"); ok {
		cfg.Media.OCR.Timeout = (time.Duration(v) * time.Millisecond).String()
	}
	if v, ok := envInt("MAX_OCR_IMAGES_PER_TWEET"); ok {
		cfg.Media.OCR.MaxImagesPerPost = v
	}
	if v, ok := envInt("MAX_OCR_IMAGES_TOTAL_PER_REQUEST"); ok {
		cfg.Media.OCR.BudgetPerRequest = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
		cfg.Alerts.Webhook.Enabled = true
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Alerts.Webhook.Secret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v, ok := envInt("PORT"); ok {
		cfg.Server.Port = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
