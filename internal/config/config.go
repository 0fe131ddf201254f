package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction      bool
	ProdOrigins       string
	HTTPAddr          string
	DBDSN             string
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	LogLevel          string
	Location          *time.Location

	// Redis backs the directory cache and the notification queue.
	// Both are disabled when RedisAddr is empty.
	RedisAddr         string
	RedisPassword     string
	RedisCacheDB      int
	RedisQueueDB      int
	DirectoryCacheTTL time.Duration

	RateLimitPerMin int

	// Background job intervals.
	PromoteEvery     time.Duration
	CompleteEvery    time.Duration
	RollForwardEvery time.Duration
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("PROD_ORIGINS", "")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("APP_TIMEZONE", "UTC")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("REDIS_QUEUE_DB", 1)
	v.SetDefault("DIRECTORY_CACHE_TTL", "5m")
	v.SetDefault("RATE_LIMIT_PER_MIN", 200)
	v.SetDefault("PROMOTE_EVERY", "1m")
	v.SetDefault("COMPLETE_EVERY", "5m")
	v.SetDefault("ROLLFORWARD_EVERY", "24h")
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.IsProduction = v.GetString("APP_ENV") == PROD_STRING
	cfg.ProdOrigins = v.GetString("PROD_ORIGINS")
	cfg.HTTPAddr = v.GetString("HTTP_ADDR")
	cfg.LogLevel = v.GetString("LOG_LEVEL")

	// Database DSN is required
	cfg.DBDSN = v.GetString("DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}

	// JWT secret is required for verifying tokens
	cfg.JWTSecret = v.GetString("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	var err error
	if cfg.JWTAccessTokenTTL, err = getDuration(v, "JWT_ACCESS_TOKEN_TTL"); err != nil {
		return nil, err
	}

	// Slot times are wall-clock times in this zone.
	tz := v.GetString("APP_TIMEZONE")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tz, err)
	}

	cfg.RedisAddr = strings.TrimSpace(v.GetString("REDIS_ADDR"))
	cfg.RedisPassword = v.GetString("REDIS_PASSWORD")
	cfg.RedisCacheDB = v.GetInt("REDIS_CACHE_DB")
	cfg.RedisQueueDB = v.GetInt("REDIS_QUEUE_DB")
	if cfg.DirectoryCacheTTL, err = getDuration(v, "DIRECTORY_CACHE_TTL"); err != nil {
		return nil, err
	}

	cfg.RateLimitPerMin = v.GetInt("RATE_LIMIT_PER_MIN")
	if cfg.RateLimitPerMin < 1 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MIN: must be >= 1")
	}

	if cfg.PromoteEvery, err = getDuration(v, "PROMOTE_EVERY"); err != nil {
		return nil, err
	}
	if cfg.CompleteEvery, err = getDuration(v, "COMPLETE_EVERY"); err != nil {
		return nil, err
	}
	if cfg.RollForwardEvery, err = getDuration(v, "ROLLFORWARD_EVERY"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getDuration parses a positive time.Duration (e.g. "15m", "1h").
func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
