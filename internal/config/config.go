package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime settings. Values come from the process environment,
// optionally seeded from a .env file in the working directory.
type Config struct {
	Env            string
	DatabaseURL    string
	DBMaxConns     int32
	ServerPort     string
	AllowedOrigins string
	JWTSecret      string
	JWTExpiration  time.Duration
	RedisAddress   string
	RedisPassword  string
	RateCacheTTL   time.Duration
	LogLevel       string
	LogFormat      string
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env:            v.GetString("APP_ENV"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		DBMaxConns:     v.GetInt32("DB_MAX_CONNS"),
		ServerPort:     v.GetString("SERVER_PORT"),
		AllowedOrigins: v.GetString("ALLOWED_ORIGINS"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTExpiration:  v.GetDuration("JWT_EXPIRATION"),
		RedisAddress:   v.GetString("REDIS_ADDRESS"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		RateCacheTTL:   v.GetDuration("RATE_CACHE_TTL"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("JWT_EXPIRATION", time.Hour)
	v.SetDefault("RATE_CACHE_TTL", time.Hour)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")
}

// Validate checks the settings every entrypoint needs.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	return nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RedisEnabled reports whether a Redis address was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddress != ""
}
