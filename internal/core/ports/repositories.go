package ports

import (
	"context"

	"castmux/internal/core/domain"
)

// SnapshotRepository keeps the most recent statistics snapshot per session.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot domain.StatsSnapshot) error
	Latest(ctx context.Context, sessionID domain.SessionID) (*domain.StatsSnapshot, error)
	Delete(ctx context.Context, sessionID domain.SessionID) error
}
