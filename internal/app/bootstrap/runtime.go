package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	appconfig "github.com/shanmugaclinic/clinic-platform/internal/config"
	"github.com/shanmugaclinic/clinic-platform/internal/livequeue"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildSnapshotCache wires the Redis-backed queue snapshot cache, or
// returns nil when Redis is not configured. The API degrades to computing
// every snapshot from the store.
func BuildSnapshotCache(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *livequeue.SnapshotCache {
	client := BuildRedisClient(ctx, cfg, logger, true)
	if client == nil {
		return nil
	}
	tracer := otel.Tracer("clinic.internal.livequeue.cache")
	return livequeue.NewSnapshotCache(client, cfg.QueueCacheTTL, tracer)
}
