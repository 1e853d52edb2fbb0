package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the records API.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	JWTTTL           time.Duration
	BulkChunkSize    int
	StudentCacheTTL  time.Duration
	PublicRateLimit  int
	PublicRateWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RECORDS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "School Records API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3000")
	v.SetDefault("jwt.ttl", "168h")
	v.SetDefault("bulk.chunk_size", 500)
	v.SetDefault("student_cache.ttl", "5m")
	v.SetDefault("public.rate_limit", 30)
	v.SetDefault("public.rate_window", "1m")

	jwtTTL, err := parseDuration(v, "jwt.ttl", "168h")
	if err != nil {
		return Config{}, fmt.Errorf("invalid jwt ttl: %w", err)
	}

	cacheTTL, err := parseDuration(v, "student_cache.ttl", "5m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid student cache ttl: %w", err)
	}

	rateWindow, err := parseDuration(v, "public.rate_window", "1m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid public rate window: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTTTL:           jwtTTL,
		BulkChunkSize:    v.GetInt("bulk.chunk_size"),
		StudentCacheTTL:  cacheTTL,
		PublicRateLimit:  v.GetInt("public.rate_limit"),
		PublicRateWindow: rateWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.BulkChunkSize <= 0 {
		cfg.BulkChunkSize = 500
	}

	if cfg.PublicRateLimit <= 0 {
		cfg.PublicRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}

	return time.ParseDuration(raw)
}
