package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxBackfillBatchSize is the largest write batch one transaction may carry.
const MaxBackfillBatchSize = 400

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	SyncBodyLimit  string        `mapstructure:"SYNC_BODY_LIMIT"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`

	SafetyUseAI    bool          `mapstructure:"SAFETY_USE_AI"`
	AdvisorURL     string        `mapstructure:"ADVISOR_URL"`
	AdvisorTimeout time.Duration `mapstructure:"ADVISOR_TIMEOUT"`

	InteractionAPIURL   string        `mapstructure:"INTERACTION_API_URL"`
	InteractionTimeout  time.Duration `mapstructure:"INTERACTION_TIMEOUT"`
	InteractionCacheTTL time.Duration `mapstructure:"INTERACTION_CACHE_TTL"`

	LookupCacheSize int           `mapstructure:"LOOKUP_CACHE_SIZE"`
	LookupCacheTTL  time.Duration `mapstructure:"LOOKUP_CACHE_TTL"`

	RecheckEnabled bool          `mapstructure:"RECHECK_ENABLED"`
	RecheckAt      string        `mapstructure:"RECHECK_AT"`
	RecheckTimeout time.Duration `mapstructure:"RECHECK_TIMEOUT"`

	BackfillBatchSize int `mapstructure:"BACKFILL_BATCH_SIZE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"REQUEST_TIMEOUT", "BODY_LIMIT", "SYNC_BODY_LIMIT", "MIGRATIONS_DIR",
	"SAFETY_USE_AI", "ADVISOR_URL", "ADVISOR_TIMEOUT",
	"INTERACTION_API_URL", "INTERACTION_TIMEOUT", "INTERACTION_CACHE_TTL",
	"LOOKUP_CACHE_SIZE", "LOOKUP_CACHE_TTL",
	"RECHECK_ENABLED", "RECHECK_AT", "RECHECK_TIMEOUT",
	"BACKFILL_BATCH_SIZE",
}

// Load reads the environment, with an optional .env file underneath it.
// Only DATABASE_URL is required; call Validate for the remaining rules.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("SYNC_BODY_LIMIT", "5M")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("SAFETY_USE_AI", false)
	v.SetDefault("ADVISOR_TIMEOUT", "8s")
	v.SetDefault("INTERACTION_API_URL", "https://rxnav.nlm.nih.gov/REST")
	v.SetDefault("INTERACTION_TIMEOUT", "5s")
	v.SetDefault("INTERACTION_CACHE_TTL", "720h")
	v.SetDefault("LOOKUP_CACHE_SIZE", 512)
	v.SetDefault("LOOKUP_CACHE_TTL", "5m")
	v.SetDefault("RECHECK_ENABLED", false)
	v.SetDefault("RECHECK_AT", "03:00")
	v.SetDefault("RECHECK_TIMEOUT", "1h")
	v.SetDefault("BACKFILL_BATCH_SIZE", MaxBackfillBatchSize)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.BackfillBatchSize < 1 || c.BackfillBatchSize > MaxBackfillBatchSize {
		return fmt.Errorf("BACKFILL_BATCH_SIZE must be between 1 and %d, got %d", MaxBackfillBatchSize, c.BackfillBatchSize)
	}
	for name, d := range map[string]time.Duration{
		"INTERACTION_CACHE_TTL": c.InteractionCacheTTL,
		"LOOKUP_CACHE_TTL":      c.LookupCacheTTL,
		"INTERACTION_TIMEOUT":   c.InteractionTimeout,
		"ADVISOR_TIMEOUT":       c.AdvisorTimeout,
		"RECHECK_TIMEOUT":       c.RecheckTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.LookupCacheSize < 1 {
		return fmt.Errorf("LOOKUP_CACHE_SIZE must be positive, got %d", c.LookupCacheSize)
	}
	if c.SafetyUseAI && c.AdvisorURL == "" {
		return fmt.Errorf("ADVISOR_URL is required when SAFETY_USE_AI is true")
	}
	if c.RecheckEnabled {
		if _, err := time.Parse("15:04", c.RecheckAt); err != nil {
			return fmt.Errorf("RECHECK_AT must be HH:MM, got %q", c.RecheckAt)
		}
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
