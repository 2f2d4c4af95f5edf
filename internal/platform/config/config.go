package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Dedup store backends.
const (
	DedupBackendRedis    = "redis"
	DedupBackendPostgres = "postgres"
	DedupBackendMemory   = "memory"
)

const defaultRedisURL = "redis://localhost:6379"

type Config struct {
	AppEnv        string        `env:"APP_ENV" default:"development"`
	IngestPort    string        `env:"INGEST_PORT" default:"9960"`
	WebSocketPort string        `env:"WEBSOCKET_PORT" default:"3333"`
	StatsInterval time.Duration `env:"STATS_INTERVAL" default:"10s"`
	LogLevel      string        `env:"LOG_LEVEL" default:"info"`
	LogFormat     string        `env:"LOG_FORMAT" default:"text"`

	DedupBackend      string        `env:"DEDUP_BACKEND" default:"redis"`
	DedupWriteTimeout time.Duration `env:"DEDUP_WRITE_TIMEOUT" default:"2s"`

	RedisURL       string `env:"REDIS_URL"`
	RedisHost      string `env:"REDIS_HOST"`
	RedisPort      string `env:"REDIS_PORT"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisNamespace string `env:"REDIS_NAMESPACE" default:"crawler"`

	DatabaseURL string `env:"DATABASE_URL"`

	ConnectAttempts int `env:"CONNECT_ATTEMPTS" default:"5"`

	MaxWebSocketConnections int      `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	WebSocketRateLimit      float64  `env:"WEBSOCKET_RATE_LIMIT" default:"10"`
	WebSocketRateBurst      int      `env:"WEBSOCKET_RATE_BURST" default:"20"`
	AllowedOrigins          []string `env:"ALLOWED_ORIGINS"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.RedisURL = resolveRedisURL(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveRedisURL prefers REDIS_URL and otherwise composes one from
// REDIS_HOST, REDIS_PORT and REDIS_PASSWORD.
func resolveRedisURL(cfg *Config) string {
	if cfg.RedisURL != "" {
		return cfg.RedisURL
	}
	if cfg.RedisHost == "" && cfg.RedisPort == "" && cfg.RedisPassword == "" {
		return defaultRedisURL
	}

	host := cfg.RedisHost
	if host == "" {
		host = "localhost"
	}
	port := cfg.RedisPort
	if _, err := strconv.Atoi(port); err != nil {
		port = "6379"
	}

	u := url.URL{Scheme: "redis", Host: net.JoinHostPort(host, port)}
	if cfg.RedisPassword != "" {
		u.User = url.UserPassword("", cfg.RedisPassword)
	}
	return u.String()
}

func validate(cfg *Config) error {
	for name, port := range map[string]string{"INGEST_PORT": cfg.IngestPort, "WEBSOCKET_PORT": cfg.WebSocketPort} {
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("%s must be a valid port number, got %q", name, port)
		}
	}
	if cfg.IngestPort == cfg.WebSocketPort {
		return errors.New("INGEST_PORT and WEBSOCKET_PORT must differ")
	}

	if cfg.StatsInterval <= 0 {
		return errors.New("STATS_INTERVAL must be positive")
	}
	if cfg.DedupWriteTimeout <= 0 {
		return errors.New("DEDUP_WRITE_TIMEOUT must be positive")
	}

	switch cfg.DedupBackend {
	case DedupBackendRedis, DedupBackendMemory:
	case DedupBackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DEDUP_BACKEND is postgres")
		}
	default:
		return fmt.Errorf("DEDUP_BACKEND must be one of redis, postgres, memory, got %q", cfg.DedupBackend)
	}

	if cfg.ConnectAttempts < 1 {
		return errors.New("CONNECT_ATTEMPTS must be at least 1")
	}

	if cfg.RedisNamespace == "" {
		return errors.New("REDIS_NAMESPACE must not be empty")
	}

	if cfg.MaxWebSocketConnections < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}
	if cfg.WebSocketRateLimit <= 0 || cfg.WebSocketRateBurst < 1 {
		return errors.New("WEBSOCKET_RATE_LIMIT and WEBSOCKET_RATE_BURST must be positive")
	}

	return nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
