package services

import (
	"context"
	"fmt"
	"time"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"
	"castmux/pkg/utils"

	"go.uber.org/zap"
)

type connectionEntry struct {
	kind       domain.ConnectionKind
	state      domain.ConnectionState
	stats      *ConnectionStatistics
	connects   int
	authCycles int
}

// ConnectionRegistry owns the active connection handles, their states and statistics.
// It is confined to the session loop and does no locking of its own.
type ConnectionRegistry struct {
	engine        ports.MediaEngine
	metrics       ports.MetricsRecorder
	logger        *zap.SugaredLogger
	maxAuthCycles int
	now           func() time.Time

	entries map[domain.ConnectionHandle]*connectionEntry
	order   []domain.ConnectionHandle
}

// NewConnectionRegistry creates a registry bound to engine. maxAuthCycles bounds how
// many times a connection may fall back to CONNECTED; 0 disables the bound.
func NewConnectionRegistry(
	engine ports.MediaEngine,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
	maxAuthCycles int,
) *ConnectionRegistry {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ConnectionRegistry{
		engine:        engine,
		metrics:       metrics,
		logger:        logger,
		maxAuthCycles: maxAuthCycles,
		now:           time.Now,
		entries:       make(map[domain.ConnectionHandle]*connectionEntry),
	}
}

// Create asks the engine for a new connection and starts tracking it in INITIALIZED.
func (r *ConnectionRegistry) Create(ctx context.Context, cfg domain.ConnectionConfig) (domain.ConnectionHandle, error) {
	cfg, err := NormalizeConfig(cfg)
	if err != nil {
		return domain.InvalidHandle, err
	}

	handle, err := r.engine.CreateConnection(ctx, cfg)
	if err != nil {
		r.metrics.RecordConnectionCreateFailed(cfg.Kind)
		return domain.InvalidHandle, fmt.Errorf("%w: %v", domain.ErrConnectionCreateFailed, err)
	}
	if !handle.Valid() {
		r.metrics.RecordConnectionCreateFailed(cfg.Kind)
		return domain.InvalidHandle, fmt.Errorf("%w: engine returned handle %d", domain.ErrConnectionCreateFailed, handle)
	}
	if _, exists := r.entries[handle]; exists {
		r.logger.Errorw("engine reused a live connection handle", "connection_id", handle)
		r.metrics.RecordConnectionCreateFailed(cfg.Kind)
		return domain.InvalidHandle, fmt.Errorf("%w: handle %d already in use", domain.ErrConnectionCreateFailed, handle)
	}

	r.entries[handle] = &connectionEntry{
		kind:  cfg.Kind,
		state: domain.StateInitialized,
		stats: NewConnectionStatistics(),
	}
	r.order = append(r.order, handle)
	r.metrics.RecordConnectionCreated(cfg.Kind)

	r.logger.Infow("connection created",
		"connection_id", handle,
		"kind", cfg.Kind,
		"destination", utils.RedactURL(cfg.Destination()),
		"mode", cfg.Mode(),
	)
	return handle, nil
}

// HandleStateChange applies an engine notification. It returns the notification to
// report outward and false when the handle is not tracked. A connection that exceeds
// the auth cycle bound is released and reported as DISCONNECTED/authFail.
func (r *ConnectionRegistry) HandleStateChange(n domain.ConnectionNotification) (domain.ConnectionNotification, bool) {
	entry, ok := r.entries[n.Handle]
	if !ok {
		r.logger.Debugw("state change for untracked connection",
			"connection_id", n.Handle,
			"state", n.State,
		)
		return n, false
	}

	r.metrics.RecordStateTransition(n.State)

	switch n.State {
	case domain.StateConnected:
		entry.connects++
		if entry.connects > 1 {
			entry.authCycles++
		}
		if r.maxAuthCycles > 0 && entry.authCycles > r.maxAuthCycles {
			r.logger.Warnw("connection exceeded auth cycle limit",
				"connection_id", n.Handle,
				"cycles", entry.authCycles,
				"limit", r.maxAuthCycles,
			)
			r.Release(n.Handle)
			return domain.ConnectionNotification{
				Handle: n.Handle,
				State:  domain.StateDisconnected,
				Status: domain.StatusAuthFail,
				Info:   n.Info,
			}, true
		}
		if entry.stats == nil {
			entry.stats = NewConnectionStatistics()
		}
		entry.stats.Init()

	case domain.StateRecord:
		if entry.stats != nil {
			entry.stats.MarkRecording(r.now())
		}

	case domain.StateDisconnected:
		r.Release(n.Handle)
		return n, true
	}

	entry.state = n.State
	return n, true
}

// Release forgets handle and tells the engine to free it. Unknown handles are a no-op.
func (r *ConnectionRegistry) Release(handle domain.ConnectionHandle) {
	if _, ok := r.entries[handle]; !ok {
		return
	}
	delete(r.entries, handle)
	for i, h := range r.order {
		if h == handle {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.engine.ReleaseConnection(handle)
	r.metrics.RecordConnectionReleased(handle)
	r.logger.Infow("connection released", "connection_id", handle)
}

// DisconnectAll releases every tracked connection.
func (r *ConnectionRegistry) DisconnectAll() {
	for _, h := range r.Handles() {
		r.Release(h)
	}
}

// Handles returns a copy of the tracked handles in creation order.
func (r *ConnectionRegistry) Handles() []domain.ConnectionHandle {
	out := make([]domain.ConnectionHandle, len(r.order))
	copy(out, r.order)
	return out
}

func (r *ConnectionRegistry) State(handle domain.ConnectionHandle) (domain.ConnectionState, bool) {
	entry, ok := r.entries[handle]
	if !ok {
		return domain.StateDisconnected, false
	}
	return entry.state, true
}

func (r *ConnectionRegistry) Statistics(handle domain.ConnectionHandle) (*ConnectionStatistics, bool) {
	entry, ok := r.entries[handle]
	if !ok || entry.stats == nil {
		return nil, false
	}
	return entry.stats, true
}

func (r *ConnectionRegistry) Len() int {
	return len(r.entries)
}

func (r *ConnectionRegistry) Info() []domain.ConnectionInfo {
	out := make([]domain.ConnectionInfo, 0, len(r.order))
	for _, h := range r.order {
		entry := r.entries[h]
		out = append(out, domain.ConnectionInfo{
			Handle: h,
			State:  entry.state.EventName(),
			Kind:   entry.kind,
		})
	}
	return out
}

// NopMetrics discards measurements.
type NopMetrics struct{}

func (NopMetrics) RecordConnectionCreated(domain.ConnectionKind)      {}
func (NopMetrics) RecordConnectionCreateFailed(domain.ConnectionKind) {}
func (NopMetrics) RecordConnectionReleased(domain.ConnectionHandle)   {}
func (NopMetrics) RecordStateTransition(domain.ConnectionState)       {}
func (NopMetrics) RecordStatsSnapshot(domain.StatsSnapshot)           {}
func (NopMetrics) RecordFlip(bool, float64)                           {}
