package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"HM_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"HM_DB_MAX_CONNS" default:"8"`

	ConfigDir string `envconfig:"HM_CONFIG_DIR" default:"config"`
	DataDir   string `envconfig:"HM_DATA_DIR" default:"data"`

	WindowTimezone string `envconfig:"HM_WINDOW_TIMEZONE" default:"America/Los_Angeles"`
	WindowHour     int    `envconfig:"HM_WINDOW_HOUR" default:"6"`

	Workers        int           `envconfig:"HM_WORKERS" default:"0"`
	RequestTimeout time.Duration `envconfig:"HM_REQUEST_TIMEOUT" default:"30s"`

	SentimentModelURL string `envconfig:"SENTIMENT_MODEL_URL" default:""`
	TrendsProxyURL    string `envconfig:"HM_TRENDS_PROXY_URL" default:""`

	RedditClientID     string `envconfig:"REDDIT_CLIENT_ID" default:""`
	RedditClientSecret string `envconfig:"REDDIT_CLIENT_SECRET" default:""`
	RedditUserAgent    string `envconfig:"REDDIT_USER_AGENT" default:"et-heatmap/2.0"`

	YouTubeAPIKey     string `envconfig:"YOUTUBE_API_KEY" default:""`
	YouTubeDailyQuota int    `envconfig:"YOUTUBE_DAILY_QUOTA" default:"10000"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("HM_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("HM_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("HM_DB_MIN_CONNS (%d) cannot exceed HM_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.WindowHour < 0 || c.WindowHour > 23 {
		return fmt.Errorf("HM_WINDOW_HOUR must be between 0 and 23")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(c.WindowTimezone)); err != nil {
		return fmt.Errorf("HM_WINDOW_TIMEZONE is invalid: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("HM_WORKERS must be >= 0")
	}
	if c.RequestTimeout < time.Second {
		return fmt.Errorf("HM_REQUEST_TIMEOUT must be at least 1s")
	}
	return nil
}
