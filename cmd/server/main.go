package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/httpserver"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/metrics"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/postgres"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/redis"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/websocket"
	"github.com/oslocurrency/oslocrawler-ws/internal/app"
	"github.com/oslocurrency/oslocrawler-ws/internal/broadcast"
	"github.com/oslocurrency/oslocrawler-ws/internal/domain"
	"github.com/oslocurrency/oslocrawler-ws/internal/ingest"
	"github.com/oslocurrency/oslocrawler-ws/internal/platform/config"
	"github.com/oslocurrency/oslocrawler-ws/internal/platform/logging"
	"github.com/oslocurrency/oslocrawler-ws/internal/platform/retry"
	"github.com/oslocurrency/oslocrawler-ws/internal/platform/version"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

type dedupStore interface {
	domain.DedupStore
	Ping(ctx context.Context) error
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func connectPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:    cfg.ConnectAttempts,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Dependency not ready, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
}

// connect runs connectFn with a per-attempt timeout, retrying transient failures.
func connect[T any](cfg *config.Config, clock clockwork.Clock, connectFn func(ctx context.Context) (T, error)) (T, error) {
	return retry.Do(context.Background(), clock, connectPolicy(cfg), func(ctx context.Context) (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		return connectFn(attemptCtx)
	})
}

// setupDedupStore connects the configured first-seen store. The returned func releases it.
func setupDedupStore(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) (dedupStore, func()) {
	switch cfg.DedupBackend {
	case config.DedupBackendPostgres:
		dbMetrics := metrics.NewDatabaseMetrics(reg)
		pool, err := connect(cfg, clock, func(ctx context.Context) (*pgxpool.Pool, error) {
			return postgres.Connect(ctx, cfg.DatabaseURL, dbMetrics)
		})
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		return postgres.NewDedupStore(pool, cfg.RedisNamespace), pool.Close

	case config.DedupBackendMemory:
		slog.Warn("Using in-memory dedup store, first-seen timestamps are lost on restart")
		return ingest.NewMemoryStore(), func() {}

	default:
		redisMetrics := metrics.NewRedisMetrics(reg)
		client, err := connect(cfg, clock, func(ctx context.Context) (*goredis.Client, error) {
			return redis.NewClient(ctx, cfg.RedisURL, redisMetrics)
		})
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		return redis.NewDedupStore(client, cfg.RedisNamespace), func() { _ = client.Close() }
	}
}

func runServer(srv *httpserver.Server, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()
}

func waitForShutdownSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"version", version.Get().String(),
		"ingest_port", cfg.IngestPort,
		"websocket_port", cfg.WebSocketPort,
		"dedup_backend", cfg.DedupBackend)

	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	relayMetrics := metrics.NewRelayMetrics(reg)

	store, closeStore := setupDedupStore(cfg, clock, reg)
	defer closeStore()

	registry := broadcast.NewRegistry(relayMetrics)
	broadcaster := broadcast.NewBroadcaster(registry, clock, relayMetrics)
	ingestSvc := ingest.NewService(store, broadcaster, clock, relayMetrics, cfg.DedupWriteTimeout)

	limits := websocket.NewConnectionLimits(clock, int64(cfg.MaxWebSocketConnections), cfg.WebSocketRateLimit, cfg.WebSocketRateBurst)
	wsHandler := websocket.NewHandler(registry, clock, limits, websocket.NewCheckOrigin(cfg.AllowedOrigins, cfg.IsDevelopment()), wsMetrics)

	healthChecks := []httpserver.HealthCheck{{Name: "dedup_store", Check: store.Ping}}
	ingestSrv := httpserver.NewIngestServer(cfg.IngestPort, ingestSvc, healthChecks, httpMetrics, metrics.Handler(reg))
	subscriberSrv := httpserver.NewSubscriberServer(cfg.WebSocketPort, wsHandler.Handle)

	statsCtx, stopStats := context.WithCancel(context.Background())
	stats := app.NewStatsReporter(registry, ingestSvc, clock, cfg.StatsInterval)
	go stats.Run(statsCtx)

	var servers sync.WaitGroup
	runServer(ingestSrv, &servers)
	runServer(subscriberSrv, &servers)

	waitForShutdownSignal()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// stop accepting blocks first, then drain what is in flight before closing subscribers
	if err := ingestSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Ingest server shutdown error", "error", err)
	}
	ingestSvc.Wait()

	broadcaster.Stop()
	if err := subscriberSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("WebSocket server shutdown error", "error", err)
	}

	stopStats()
	servers.Wait()
	slog.Info("Shutdown complete")
}
