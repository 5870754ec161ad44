package monitoring

import (
	"context"
	"fmt"
	"time"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck is optional: snapshots and cross-instance events degrade without
// Redis but streaming continues.
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddOptionalCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, timeout)
}

// AddSessionCheck verifies the session loop still answers.
func (h *HealthChecker) AddSessionCheck(session ports.SessionService, timeout time.Duration) {
	h.AddCheck("session", func(ctx context.Context) error {
		_, err := session.Status(ctx)
		return err
	}, timeout)
}

// AddCameraCheck fails while no camera is available to capture from.
func (h *HealthChecker) AddCameraCheck(provider ports.CameraProvider, timeout time.Duration) {
	h.AddCheck("cameras", func(ctx context.Context) error {
		cameras, err := provider.Cameras(ctx)
		if err != nil {
			return err
		}
		if len(cameras) == 0 {
			return fmt.Errorf("no cameras: %w", domain.ErrCameraNotFound)
		}
		return nil
	}, timeout)
}
