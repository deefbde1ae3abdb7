// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Terms      []string         `mapstructure:"terms"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Source     SourceConfig     `mapstructure:"source"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	DB         DBConfig         `mapstructure:"db"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	FailureLog FailureLogConfig `mapstructure:"failure_log"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ScraperConfig governs scheduler and per-term crawl behavior.
type ScraperConfig struct {
	Workers          int `mapstructure:"workers"`
	BreakerThreshold int `mapstructure:"breaker_threshold"`
	PacingMinMs      int `mapstructure:"pacing_min_ms"`
	PacingMaxMs      int `mapstructure:"pacing_max_ms"`
}

// SourceConfig describes the remote literature search interface.
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the rendered-fetch subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	MinHTMLBytes  int  `mapstructure:"min_html_bytes"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// CheckpointConfig locates the durable crawl-progress file.
type CheckpointConfig struct {
	Path string `mapstructure:"path"`
}

// FailureLogConfig controls the append-only skipped-link sink.
type FailureLogConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LITCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.workers", 3)
	v.SetDefault("scraper.breaker_threshold", 3)
	v.SetDefault("scraper.pacing_min_ms", 500)
	v.SetDefault("scraper.pacing_max_ms", 2500)
	v.SetDefault("source.base_url", "https://pubmed.ncbi.nlm.nih.gov")
	v.SetDefault("source.user_agent", "litcrawler-bot/0.1")
	v.SetDefault("source.timeout_seconds", 15)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.min_html_bytes", 2048)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("checkpoint.path", "checkpoint.json")
	v.SetDefault("failure_log.path", "failed_links.log")
	v.SetDefault("failure_log.max_size_mb", 15)
	v.SetDefault("failure_log.max_backups", 3)
	v.SetDefault("failure_log.max_age_days", 28)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Terms) == 0 {
		return fmt.Errorf("terms must not be empty")
	}
	if c.Scraper.Workers <= 0 {
		return fmt.Errorf("scraper.workers must be > 0")
	}
	if c.Scraper.BreakerThreshold <= 0 {
		return fmt.Errorf("scraper.breaker_threshold must be > 0")
	}
	if c.Scraper.PacingMaxMs < c.Scraper.PacingMinMs {
		return fmt.Errorf("scraper.pacing_max_ms must be >= scraper.pacing_min_ms")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Checkpoint.Path == "" {
		return fmt.Errorf("checkpoint.path is required")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	return nil
}

// FetchTimeout converts the source timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// PacingWindow returns the courtesy-delay bounds between remote requests.
func (c Config) PacingWindow() (time.Duration, time.Duration) {
	return time.Duration(c.Scraper.PacingMinMs) * time.Millisecond,
		time.Duration(c.Scraper.PacingMaxMs) * time.Millisecond
}
