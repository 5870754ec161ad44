package memory

import (
	"context"
	"sync"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"
)

type MemorySnapshotRepository struct {
	snapshots map[domain.SessionID]domain.StatsSnapshot
	mu        sync.RWMutex
}

func NewMemorySnapshotRepository() ports.SnapshotRepository {
	return &MemorySnapshotRepository{
		snapshots: make(map[domain.SessionID]domain.StatsSnapshot),
	}
}

func (r *MemorySnapshotRepository) Save(ctx context.Context, snapshot domain.StatsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots[snapshot.SessionID] = cloneSnapshot(snapshot)
	return nil
}

func (r *MemorySnapshotRepository) Latest(ctx context.Context, sessionID domain.SessionID) (*domain.StatsSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot, exists := r.snapshots[sessionID]
	if !exists {
		return nil, domain.ErrSnapshotNotFound
	}

	out := cloneSnapshot(snapshot)
	return &out, nil
}

func (r *MemorySnapshotRepository) Delete(ctx context.Context, sessionID domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.snapshots[sessionID]; !exists {
		return domain.ErrSnapshotNotFound
	}

	delete(r.snapshots, sessionID)
	return nil
}

// cloneSnapshot copies the connections map so callers never share it with the store.
func cloneSnapshot(s domain.StatsSnapshot) domain.StatsSnapshot {
	connections := make(map[domain.ConnectionHandle]domain.ConnectionStats, len(s.Connections))
	for h, stats := range s.Connections {
		connections[h] = stats
	}
	s.Connections = connections
	return s
}
