package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "9960", cfg.IngestPort)
	assert.Equal(t, "3333", cfg.WebSocketPort)
	assert.Equal(t, 10*time.Second, cfg.StatsInterval)
	assert.Equal(t, DedupBackendRedis, cfg.DedupBackend)
	assert.Equal(t, "crawler", cfg.RedisNamespace)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 10000, cfg.MaxWebSocketConnections)
	assert.Equal(t, 5, cfg.ConnectAttempts)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("INGEST_PORT", "8000")
	t.Setenv("WEBSOCKET_PORT", "8001")
	t.Setenv("STATS_INTERVAL", "30s")
	t.Setenv("REDIS_NAMESPACE", "nano")
	t.Setenv("ALLOWED_ORIGINS", "https://wallet.example,https://beta.wallet.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.IngestPort)
	assert.Equal(t, "8001", cfg.WebSocketPort)
	assert.Equal(t, 30*time.Second, cfg.StatsInterval)
	assert.Equal(t, "nano", cfg.RedisNamespace)
	assert.Equal(t, []string{"https://wallet.example", "https://beta.wallet.example"}, cfg.AllowedOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestResolveRedisURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit URL wins", Config{RedisURL: "redis://cache:6380/2", RedisHost: "ignored"}, "redis://cache:6380/2"},
		{"nothing set", Config{}, "redis://localhost:6379"},
		{"host only", Config{RedisHost: "cache"}, "redis://cache:6379"},
		{"host and port", Config{RedisHost: "cache", RedisPort: "6390"}, "redis://cache:6390"},
		{"invalid port falls back", Config{RedisHost: "cache", RedisPort: "abc"}, "redis://cache:6379"},
		{"password", Config{RedisPassword: "s3cret"}, "redis://:s3cret@localhost:6379"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveRedisURL(&tt.cfg))
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad ingest port", map[string]string{"INGEST_PORT": "http"}, `INGEST_PORT must be a valid port number, got "http"`},
		{"port out of range", map[string]string{"WEBSOCKET_PORT": "70000"}, `WEBSOCKET_PORT must be a valid port number, got "70000"`},
		{"same ports", map[string]string{"INGEST_PORT": "4000", "WEBSOCKET_PORT": "4000"}, "INGEST_PORT and WEBSOCKET_PORT must differ"},
		{"zero stats interval", map[string]string{"STATS_INTERVAL": "0s"}, "STATS_INTERVAL must be positive"},
		{"unknown backend", map[string]string{"DEDUP_BACKEND": "etcd"}, `DEDUP_BACKEND must be one of redis, postgres, memory, got "etcd"`},
		{"postgres without URL", map[string]string{"DEDUP_BACKEND": "postgres"}, "DATABASE_URL is required when DEDUP_BACKEND is postgres"},
		{"zero connect attempts", map[string]string{"CONNECT_ATTEMPTS": "0"}, "CONNECT_ATTEMPTS must be at least 1"},
		{"zero connections", map[string]string{"MAX_WEBSOCKET_CONNECTIONS": "0"}, "MAX_WEBSOCKET_CONNECTIONS must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_PostgresBackend(t *testing.T) {
	t.Setenv("DEDUP_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/relay")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DedupBackendPostgres, cfg.DedupBackend)
	assert.Equal(t, "postgres://localhost/relay", cfg.DatabaseURL)
}
