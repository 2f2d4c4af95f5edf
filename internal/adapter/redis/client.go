package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/metrics"
	"github.com/oslocurrency/oslocrawler-ws/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to the Redis server at redisURL (e.g. "redis://localhost:6379") and
// verifies the connection. redisMetrics may be nil.
func NewClient(ctx context.Context, redisURL string, redisMetrics *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	client := goredis.NewClient(opts)
	if redisMetrics != nil {
		client.AddHook(NewMetricsHook(redisMetrics))
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("Redis connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}
