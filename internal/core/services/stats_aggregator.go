package services

import (
	"context"
	"time"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"

	"go.uber.org/zap"
)

// StatsAggregator builds periodic statistics snapshots from the registry's RECORD
// connections. Like the registry it runs on the session loop only.
type StatsAggregator struct {
	registry *ConnectionRegistry
	engine   ports.MediaEngine
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewStatsAggregator(registry *ConnectionRegistry, engine ports.MediaEngine, logger *zap.SugaredLogger) *StatsAggregator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &StatsAggregator{
		registry: registry,
		engine:   engine,
		logger:   logger,
		now:      time.Now,
	}
}

// Collect polls every streaming connection and reports whether the snapshot should be
// emitted: it has at least one entry, or a local recording is in progress.
func (a *StatsAggregator) Collect(ctx context.Context, recording bool) (domain.StatsSnapshot, bool) {
	snapshot := domain.StatsSnapshot{
		Timestamp:   a.now(),
		Recording:   recording,
		Connections: make(map[domain.ConnectionHandle]domain.ConnectionStats),
	}

	for _, h := range a.registry.Handles() {
		if ctx.Err() != nil {
			break
		}
		state, ok := a.registry.State(h)
		if !ok || state != domain.StateRecord {
			continue
		}
		stats, ok := a.registry.Statistics(h)
		if !ok {
			continue
		}

		counters, err := a.engine.PollStatistics(h)
		if err != nil {
			a.logger.Debugw("poll statistics failed", "connection_id", h, "error", err)
			continue
		}
		if counters.Timestamp.IsZero() {
			counters.Timestamp = snapshot.Timestamp
		}
		stats.Update(counters)
		snapshot.Connections[h] = stats.Snapshot()
	}

	return snapshot, !snapshot.Empty() || recording
}
