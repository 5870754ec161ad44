package repositories

import (
	"context"
	"testing"

	"castmux/internal/infrastructure/repositories/memory"
	"castmux/pkg/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRepositoryFactory_MemoryWhenRedisDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	f := NewRepositoryFactory(cfg, zap.NewNop().Sugar())

	assert.IsType(t, &memory.MemorySnapshotRepository{}, f.CreateSnapshotRepository())
	assert.Nil(t, f.RedisClient())
	assert.NoError(t, f.HealthCheck(context.Background()))
	assert.NoError(t, f.Close())
}

func TestRepositoryFactory_FallsBackWhenRedisUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials an unreachable address")
	}
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"

	f := NewRepositoryFactory(cfg, zap.NewNop().Sugar())

	assert.IsType(t, &memory.MemorySnapshotRepository{}, f.CreateSnapshotRepository())
	assert.Nil(t, f.RedisClient())
}
