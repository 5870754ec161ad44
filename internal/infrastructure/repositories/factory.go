package repositories

import (
	"context"
	"time"

	"castmux/internal/core/ports"
	"castmux/internal/infrastructure/reliability"
	"castmux/internal/infrastructure/repositories/memory"
	redisrepo "castmux/internal/infrastructure/repositories/redis"
	"castmux/pkg/circuitbreaker"
	"castmux/pkg/config"
	"castmux/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	snapshotTTL time.Duration
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when enabled and falls back to memory
// storage when it is unreachable.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis:    cfg.Redis.Enabled,
		snapshotTTL: cfg.Redis.SnapshotTTL,
		logger:      logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}
	return factory
}

// CreateSnapshotRepository creates a snapshot repository (Redis or memory with fallback).
// The Redis store is guarded by retries and a circuit breaker.
func (f *RepositoryFactory) CreateSnapshotRepository() ports.SnapshotRepository {
	if f.useRedis && f.redisClient != nil {
		return reliability.NewSnapshotRepositoryWrapper(
			redisrepo.NewRedisSnapshotRepository(f.redisClient, f.snapshotTTL),
			retry.DefaultConfig(),
			circuitbreaker.DefaultConfig(),
			f.logger,
		)
	}
	return memory.NewMemorySnapshotRepository()
}

// RedisClient returns the shared client, or nil when running on memory storage.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if f.useRedis {
		return f.redisClient
	}
	return nil
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
