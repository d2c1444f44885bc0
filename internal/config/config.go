// Package config defines the top-level configuration for the attention
// markets daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ATTND_* environment variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Index     IndexConfig     `toml:"index"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Gemini    GeminiConfig    `toml:"gemini"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// AdminToken guards the admin endpoints (force resolve, delete). Empty
	// disables them.
	AdminToken string `toml:"admin_token"`
	// RateLimit is the per-client request budget for public write endpoints
	// within RateWindow.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr switches the
// daemon to in-process fallbacks for the cache, bus, and rate limiter.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for thumbnails and
// archives. An empty Bucket disables blob storage.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// IndexConfig holds attention index source parameters.
type IndexConfig struct {
	// HNFeedURL is the Hacker News front page RSS feed.
	HNFeedURL string `toml:"hn_feed_url"`
	// FetchTimeout bounds each channel fetch inside an index tick.
	FetchTimeout duration `toml:"fetch_timeout"`
	// MinTraction is the total activity a proposal needs across channels to
	// open a market without a holistic estimate.
	MinTraction float64 `toml:"min_traction"`
}

// SchedulerConfig holds the periodic loop intervals.
type SchedulerConfig struct {
	Enabled bool `toml:"enabled"`
	// IndexInterval is the cadence for recomputing live event indices.
	IndexInterval duration `toml:"index_interval"`
	// DemoInterval is the cadence for the synthetic demo index.
	DemoInterval duration `toml:"demo_interval"`
	// ResolveInterval is the cadence for the resolution sweep.
	ResolveInterval duration `toml:"resolve_interval"`
}

// GeminiConfig holds the optional LLM policy parameters. An empty APIKey
// disables the LLM; the daemon then runs on deterministic fallbacks.
type GeminiConfig struct {
	APIKey     string   `toml:"api_key"`
	Model      string   `toml:"model"`
	ImageModel string   `toml:"image_model"`
	Timeout    duration `toml:"timeout"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Kinds             []string `toml:"kinds"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   30,
			RateWindow:  duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "attnd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Index: IndexConfig{
			HNFeedURL:    "https://hnrss.org/frontpage",
			FetchTimeout: duration{15 * time.Second},
			MinTraction:  1.0,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			IndexInterval:   duration{time.Minute},
			DemoInterval:    duration{10 * time.Second},
			ResolveInterval: duration{30 * time.Second},
		},
		Gemini: GeminiConfig{
			Model:      "gemini-2.0-flash",
			ImageModel: "gemini-2.0-flash-preview-image-generation",
			Timeout:    duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			Kinds: []string{"market_opened", "market_resolved"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":     true,
	"scheduler": true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, scheduler, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Bucket != "" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when a bucket is configured")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when a bucket is configured")
		}
	}

	if c.Index.HNFeedURL == "" {
		errs = append(errs, "index: hn_feed_url must not be empty")
	}
	if c.Index.FetchTimeout.Duration <= 0 {
		errs = append(errs, "index: fetch_timeout must be positive")
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.IndexInterval.Duration <= 0 {
			errs = append(errs, "scheduler: index_interval must be positive")
		}
		if c.Scheduler.DemoInterval.Duration <= 0 {
			errs = append(errs, "scheduler: demo_interval must be positive")
		}
		if c.Scheduler.ResolveInterval.Duration <= 0 {
			errs = append(errs, "scheduler: resolve_interval must be positive")
		}
	}

	if c.Gemini.APIKey != "" && c.Gemini.Model == "" {
		errs = append(errs, "gemini: model must not be empty when api_key is set")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 1 {
			errs = append(errs, "server: rate_limit must be >= 1")
		}
		if c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
