package ports

import (
	"context"

	"castmux/internal/core/domain"
)

// EventPublisher delivers outward events. Publish must not block the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// MetricsRecorder receives connection lifecycle and statistics measurements.
type MetricsRecorder interface {
	RecordConnectionCreated(kind domain.ConnectionKind)
	RecordConnectionCreateFailed(kind domain.ConnectionKind)
	RecordConnectionReleased(handle domain.ConnectionHandle)
	RecordStateTransition(state domain.ConnectionState)
	RecordStatsSnapshot(snapshot domain.StatsSnapshot)
	RecordFlip(ok bool, seconds float64)
}
