package domain

import "time"

// ConnectionStats is one connection's entry in a statistics snapshot.
type ConnectionStats struct {
	Duration       time.Duration `json:"-"`
	DurationSec    int64         `json:"duration"`
	BytesDelivered uint64        `json:"bytesDelivered"`
	Bitrate        float64       `json:"bitrate"` // bps
	LossIncreasing bool          `json:"lostIncreased"`
}

type StatsSnapshot struct {
	SessionID   SessionID                            `json:"session_id"`
	Timestamp   time.Time                            `json:"timestamp"`
	Recording   bool                                 `json:"recording"`
	Connections map[ConnectionHandle]ConnectionStats `json:"connections"`
}

func (s StatsSnapshot) Empty() bool {
	return len(s.Connections) == 0
}

// ConnectionInfo describes one tracked connection.
type ConnectionInfo struct {
	Handle ConnectionHandle `json:"connection_id"`
	State  string           `json:"state"`
	Kind   ConnectionKind   `json:"kind,omitempty"`
}
