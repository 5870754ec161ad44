package services

import (
	"time"

	"castmux/internal/core/domain"
)

// ConnectionStatistics tracks one connection's delivery counters between polls.
// It is owned by the ConnectionRegistry and not safe for concurrent use.
type ConnectionStatistics struct {
	recordStart time.Time

	lastBytes     uint64
	lastLost      uint64
	lastSample    time.Time
	hasSample     bool
	bitrate       float64
	lossIncreased bool
	traffic       uint64
	duration      time.Duration
}

func NewConnectionStatistics() *ConnectionStatistics {
	return &ConnectionStatistics{}
}

// Init clears all counters. Called whenever the connection (re)enters CONNECTED.
func (s *ConnectionStatistics) Init() {
	*s = ConnectionStatistics{}
}

// MarkRecording starts the duration clock on the first RECORD entry after Init.
func (s *ConnectionStatistics) MarkRecording(now time.Time) {
	if s.recordStart.IsZero() {
		s.recordStart = now
	}
}

// Update folds a fresh engine sample into the tracker.
func (s *ConnectionStatistics) Update(c domain.ConnectionCounters) {
	now := c.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	s.MarkRecording(now)

	if s.hasSample {
		elapsed := now.Sub(s.lastSample).Seconds()
		if elapsed > 0 && c.BytesSent >= s.lastBytes {
			s.bitrate = float64(c.BytesSent-s.lastBytes) * 8 / elapsed
		}
		s.lossIncreased = c.PacketsLost > s.lastLost
	}

	s.traffic = c.BytesSent
	s.duration = now.Sub(s.recordStart)

	s.lastBytes = c.BytesSent
	s.lastLost = c.PacketsLost
	s.lastSample = now
	s.hasSample = true
}

func (s *ConnectionStatistics) Duration() time.Duration { return s.duration }

func (s *ConnectionStatistics) Traffic() uint64 { return s.traffic }

func (s *ConnectionStatistics) Bandwidth() float64 { return s.bitrate }

func (s *ConnectionStatistics) IsDataLossIncreasing() bool {
	return s.lossIncreased
}

func (s *ConnectionStatistics) Snapshot() domain.ConnectionStats {
	return domain.ConnectionStats{
		Duration:       s.duration,
		DurationSec:    int64(s.duration / time.Second),
		BytesDelivered: s.traffic,
		Bitrate:        s.bitrate,
		LossIncreasing: s.lossIncreased,
	}
}
