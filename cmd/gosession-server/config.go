package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/userstore"
	"github.com/joho/godotenv"
)

// Config is the server's runtime configuration, read from the environment
// and an optional .env file.
type Config struct {
	HTTPAddr       string
	Redis          RedisConfig
	Database       DatabaseConfig
	AccessTTL      time.Duration
	JWT            JWTConfig
	CORSOrigins    []string
	TrustProxy     bool
	LogLevel       slog.Level
	MetricsEnabled bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

type DatabaseConfig struct {
	Driver userstore.Dialect
	DSN    string
}

// JWTConfig enables the signed-token fallback when Secret is set.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(os.LookupEnv)
}

func parse(lookup func(string) (string, bool)) (*Config, error) {
	getEnv := func(key, fallback string) string {
		if val, ok := lookup(key); ok {
			return val
		}
		return fallback
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	redisTimeout, err := strconv.Atoi(getEnv("REDIS_TIMEOUT_MS", "3000"))
	if err != nil || redisTimeout <= 0 {
		return nil, fmt.Errorf("invalid REDIS_TIMEOUT_MS: %q", getEnv("REDIS_TIMEOUT_MS", ""))
	}
	accessTTL, err := strconv.Atoi(getEnv("ACCESS_TTL_SECONDS", "86400"))
	if err != nil || accessTTL <= 0 {
		return nil, fmt.Errorf("invalid ACCESS_TTL_SECONDS: %q", getEnv("ACCESS_TTL_SECONDS", ""))
	}
	jwtTTL, err := strconv.Atoi(getEnv("JWT_TTL_SECONDS", "3600"))
	if err != nil || jwtTTL <= 0 {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %q", getEnv("JWT_TTL_SECONDS", ""))
	}
	metricsEnabled, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid METRICS_ENABLED: %w", err)
	}
	trustProxy, err := strconv.ParseBool(getEnv("TRUST_PROXY", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRUST_PROXY: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	driver := userstore.Dialect(getEnv("DB_DRIVER", string(userstore.DialectSQLite)))
	if driver != userstore.DialectSQLite && driver != userstore.DialectPostgres {
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want sqlite or pgx", driver)
	}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Timeout:  time.Duration(redisTimeout) * time.Millisecond,
		},
		Database: DatabaseConfig{
			Driver: driver,
			DSN:    getEnv("DB_DSN", "file:gosession.db?_pragma=journal_mode(WAL)"),
		},
		AccessTTL: time.Duration(accessTTL) * time.Second,
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    time.Duration(jwtTTL) * time.Second,
			Issuer: getEnv("JWT_ISSUER", "gosession"),
		},
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "")),
		TrustProxy:     trustProxy,
		LogLevel:       level,
		MetricsEnabled: metricsEnabled,
	}

	if cfg.JWT.Secret != "" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	return cfg, nil
}

// EngineConfig maps the server settings onto the engine defaults.
func (c *Config) EngineConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.Token.AccessTTL = c.AccessTTL
	cfg.Store.OperationTimeout = c.Redis.Timeout
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	cfg.Audit.Enabled = true

	if c.JWT.Secret != "" {
		cfg.JWT.Enabled = true
		cfg.JWT.SigningMethod = "hs256"
		cfg.JWT.PrivateKey = []byte(c.JWT.Secret)
		cfg.JWT.TTL = c.JWT.TTL
		cfg.JWT.Issuer = c.JWT.Issuer
	}
	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
