package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"
	"castmux/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

const snapshotPrefix = "castmux:stats:"

type RedisSnapshotRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSnapshotRepository stores the latest snapshot per session. A zero ttl keeps
// snapshots until they are deleted.
func NewRedisSnapshotRepository(client *redis.Client, ttl time.Duration) ports.SnapshotRepository {
	return &RedisSnapshotRepository{
		client: client,
		prefix: snapshotPrefix,
		ttl:    ttl,
	}
}

func (r *RedisSnapshotRepository) snapshotKey(id domain.SessionID) string {
	return r.prefix + string(id)
}

func (r *RedisSnapshotRepository) sessionsKey() string {
	return r.prefix + "sessions"
}

func (r *RedisSnapshotRepository) Save(ctx context.Context, snapshot domain.StatsSnapshot) error {
	ctx, span := tracing.TraceRepositoryOperation(ctx, "save", "redis")
	defer span.End()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.snapshotKey(snapshot.SessionID), data, r.ttl)
	pipe.SAdd(ctx, r.sessionsKey(), string(snapshot.SessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to store snapshot in Redis: %w", err)
	}
	return nil
}

func (r *RedisSnapshotRepository) Latest(ctx context.Context, sessionID domain.SessionID) (*domain.StatsSnapshot, error) {
	ctx, span := tracing.TraceRepositoryOperation(ctx, "latest", "redis")
	defer span.End()

	data, err := r.client.Get(ctx, r.snapshotKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from Redis: %w", err)
	}

	var snapshot domain.StatsSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	for h, stats := range snapshot.Connections {
		stats.Duration = time.Duration(stats.DurationSec) * time.Second
		snapshot.Connections[h] = stats
	}
	return &snapshot, nil
}

func (r *RedisSnapshotRepository) Delete(ctx context.Context, sessionID domain.SessionID) error {
	ctx, span := tracing.TraceRepositoryOperation(ctx, "delete", "redis")
	defer span.End()

	removed, err := r.client.Del(ctx, r.snapshotKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete snapshot from Redis: %w", err)
	}
	if err := r.client.SRem(ctx, r.sessionsKey(), string(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to remove session from index: %w", err)
	}
	if removed == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}
