// Package config loads and validates app config from env and an optional .env
// file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// AppPort is the port the HTTP server listens on.
	AppPort int `mapstructure:"APP_PORT"`
	// SecretKey signs access and refresh tokens (HS256). Required. Loaded
	// once at startup; never rotated within a process lifetime.
	SecretKey string `mapstructure:"SECRET_KEY"`
	// AdminEmail is the administrator identity seeded at startup and accepted
	// by the static-admin login path. Optional.
	AdminEmail string `mapstructure:"ADMIN_EMAIL"`
	// AdminPassword is the administrator secret paired with AdminEmail.
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
	// DatabaseURL is the Postgres DSN. When empty, discrete DB_* parts are
	// assembled instead; when those are empty too, the API runs on the
	// in-memory store (dev mode).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      int    `mapstructure:"DB_PORT"`
	DBName      string `mapstructure:"DB_DATABASE"`
	DBUser      string `mapstructure:"DB_USERNAME"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	// AccessTokenTTL is the access token lifetime (e.g. "1h").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token lifetime (e.g. "720h" for 30d).
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// BcryptCost is the bcrypt work factor (4-31).
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// RatePerSec and RateBurst configure the per-IP request limiter.
	RatePerSec int `mapstructure:"RATE_PER_SEC"`
	RateBurst  int `mapstructure:"RATE_BURST"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Missing .env is ignored; env vars override .env values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_PORT", 4001)
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_DATABASE", "")
	v.SetDefault("DB_USERNAME", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("ACCESS_TOKEN_TTL", "1h")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("RATE_PER_SEC", 100)
	v.SetDefault("RATE_BURST", 100)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.SecretKey == "" {
		return nil, errors.New("config: SECRET_KEY must be set")
	}
	if cfg.AppPort <= 0 || cfg.AppPort > 65535 {
		return nil, errors.New("config: APP_PORT must be a valid port")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return nil, errors.New("config: ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	return &cfg, nil
}

// DSN returns the Postgres DSN, assembling one from discrete DB_* parts when
// DATABASE_URL is unset. Empty result means no database is configured.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBHost == "" || c.DBName == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// AccessTTL parses AccessTokenTTL. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.AccessTokenTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// RefreshTTL parses RefreshTokenTTL. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.RefreshTokenTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}
