package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ATTND_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ATTND_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setBool(&cfg.Server.Enabled, "ATTND_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ATTND_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ATTND_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminToken, "ATTND_SERVER_ADMIN_TOKEN")
	setInt(&cfg.Server.RateLimit, "ATTND_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ATTND_SERVER_RATE_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ATTND_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ATTND_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ATTND_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ATTND_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ATTND_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ATTND_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ATTND_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ATTND_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ATTND_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ATTND_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ATTND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ATTND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ATTND_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ATTND_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ATTND_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ATTND_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ATTND_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ATTND_S3_REGION")
	setStr(&cfg.S3.Bucket, "ATTND_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ATTND_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ATTND_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ATTND_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ATTND_S3_FORCE_PATH_STYLE")

	// ── Index ──
	setStr(&cfg.Index.HNFeedURL, "ATTND_INDEX_HN_FEED_URL")
	setDuration(&cfg.Index.FetchTimeout, "ATTND_INDEX_FETCH_TIMEOUT")
	setFloat64(&cfg.Index.MinTraction, "ATTND_INDEX_MIN_TRACTION")

	// ── Scheduler ──
	setBool(&cfg.Scheduler.Enabled, "ATTND_SCHEDULER_ENABLED")
	setDuration(&cfg.Scheduler.IndexInterval, "ATTND_SCHEDULER_INDEX_INTERVAL")
	setDuration(&cfg.Scheduler.DemoInterval, "ATTND_SCHEDULER_DEMO_INTERVAL")
	setDuration(&cfg.Scheduler.ResolveInterval, "ATTND_SCHEDULER_RESOLVE_INTERVAL")

	// ── Gemini ──
	setStr(&cfg.Gemini.APIKey, "ATTND_GEMINI_API_KEY")
	setStr(&cfg.Gemini.APIKey, "GEMINI_API_KEY") // compatibility alias
	setStr(&cfg.Gemini.Model, "ATTND_GEMINI_MODEL")
	setStr(&cfg.Gemini.ImageModel, "ATTND_GEMINI_IMAGE_MODEL")
	setDuration(&cfg.Gemini.Timeout, "ATTND_GEMINI_TIMEOUT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ATTND_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ATTND_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ATTND_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Kinds, "ATTND_NOTIFY_KINDS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ATTND_MODE")
	setStr(&cfg.LogLevel, "ATTND_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
