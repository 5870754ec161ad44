package services

import (
	"testing"
	"time"

	"castmux/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestConnectionStatistics_Update(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stats := NewConnectionStatistics()
	stats.MarkRecording(t0)

	stats.Update(domain.ConnectionCounters{BytesSent: 0, PacketsLost: 0, Timestamp: t0})
	assert.Zero(t, stats.Bandwidth())
	assert.False(t, stats.IsDataLossIncreasing())

	stats.Update(domain.ConnectionCounters{BytesSent: 250000, PacketsLost: 2, Timestamp: t0.Add(time.Second)})
	assert.Equal(t, 2000000.0, stats.Bandwidth())
	assert.True(t, stats.IsDataLossIncreasing())
	assert.Equal(t, uint64(250000), stats.Traffic())
	assert.Equal(t, time.Second, stats.Duration())

	stats.Update(domain.ConnectionCounters{BytesSent: 750000, PacketsLost: 2, Timestamp: t0.Add(3 * time.Second)})
	assert.Equal(t, 2000000.0, stats.Bandwidth())
	assert.False(t, stats.IsDataLossIncreasing())

	snap := stats.Snapshot()
	assert.Equal(t, int64(3), snap.DurationSec)
	assert.Equal(t, uint64(750000), snap.BytesDelivered)
	assert.Equal(t, 2000000.0, snap.Bitrate)
	assert.False(t, snap.LossIncreasing)
}

func TestConnectionStatistics_CounterResetKeepsBitrate(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stats := NewConnectionStatistics()

	stats.Update(domain.ConnectionCounters{BytesSent: 1000, Timestamp: t0})
	stats.Update(domain.ConnectionCounters{BytesSent: 2000, Timestamp: t0.Add(time.Second)})
	assert.Equal(t, 8000.0, stats.Bandwidth())

	stats.Update(domain.ConnectionCounters{BytesSent: 10, Timestamp: t0.Add(2 * time.Second)})
	assert.Equal(t, 8000.0, stats.Bandwidth())
	assert.Equal(t, uint64(10), stats.Traffic())
}

func TestConnectionStatistics_InitClearsEverything(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stats := NewConnectionStatistics()
	stats.MarkRecording(t0)
	stats.Update(domain.ConnectionCounters{BytesSent: 100, Timestamp: t0.Add(time.Second)})
	stats.Update(domain.ConnectionCounters{BytesSent: 200, PacketsLost: 1, Timestamp: t0.Add(2 * time.Second)})

	stats.Init()
	assert.Equal(t, domain.ConnectionStats{}, stats.Snapshot())

	// The duration clock restarts at the next recording mark.
	t1 := t0.Add(time.Minute)
	stats.MarkRecording(t1)
	stats.MarkRecording(t1.Add(time.Hour))
	stats.Update(domain.ConnectionCounters{BytesSent: 5, Timestamp: t1.Add(4 * time.Second)})
	assert.Equal(t, 4*time.Second, stats.Duration())
}
