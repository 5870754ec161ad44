package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey     = "castmux:schema:version"
	currentSchemaVersion = 2
)

// Migration is one versioned change to the key layout.
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
}

// Migrate runs all pending migrations
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Debugw("schema is up to date", "current_version", currentVersion)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}
		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			// v1 had no index; nothing to create.
			Version: 1,
			Up:      func(ctx context.Context, client *redis.Client) error { return nil },
		},
		{
			// v2 indexes every session that has a stored snapshot.
			Version: 2,
			Up: func(ctx context.Context, client *redis.Client) error {
				var cursor uint64
				for {
					keys, next, err := client.Scan(ctx, cursor, snapshotPrefix+"*", 100).Result()
					if err != nil {
						return err
					}
					for _, key := range keys {
						id := key[len(snapshotPrefix):]
						if id == "sessions" {
							continue
						}
						if err := client.SAdd(ctx, snapshotPrefix+"sessions", id).Err(); err != nil {
							return err
						}
					}
					if next == 0 {
						return nil
					}
					cursor = next
				}
			},
		},
	}
}
