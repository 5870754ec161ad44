package domain

import "time"

type SessionID string

type Codec string

const (
	CodecH264 Codec = "video/avc"
	CodecHEVC Codec = "video/hevc"
)

type LiveRotation int

const (
	RotationOff LiveRotation = iota
	RotationFollow
	RotationLocked
)

func (r LiveRotation) String() string {
	switch r {
	case RotationFollow:
		return "follow"
	case RotationLocked:
		return "lock"
	default:
		return "off"
	}
}

// VideoSessionConfig is the encoder/camera configuration owned by the session.
type VideoSessionConfig struct {
	CameraID         string       `json:"camera_id"`
	Size             Size         `json:"size"`         // camera/preview size
	EncoderSize      Size         `json:"encoder_size"` // swapped for vertical video
	Fps              float64      `json:"fps"`
	Codec            Codec        `json:"codec"`
	Bitrate          int          `json:"bitrate"` // bps
	KeyFrameInterval int          `json:"keyframe_interval"`
	LiveRotation     LiveRotation `json:"live_rotation"`
}

type AudioConfig struct {
	Bitrate    int `json:"bitrate"` // bps
	Channels   int `json:"channels"`
	SampleRate int `json:"sample_rate"`
}

func DefaultVideoConfig() VideoSessionConfig {
	return VideoSessionConfig{
		CameraID:         "0",
		Size:             Size{Width: 1280, Height: 720},
		EncoderSize:      Size{Width: 1280, Height: 720},
		Fps:              30,
		Codec:            CodecH264,
		Bitrate:          2000 * 1000,
		KeyFrameInterval: 2,
		LiveRotation:     RotationOff,
	}
}

func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		Bitrate:    128 * 1000,
		Channels:   2,
		SampleRate: 44100,
	}
}

// SessionPlan is what the media engine is built from.
type SessionPlan struct {
	ActiveCameraID string             `json:"active_camera_id"`
	Cameras        []CameraConfig     `json:"cameras"`
	CanFlip        bool               `json:"can_flip"`
	Video          VideoSessionConfig `json:"video"`
	Audio          AudioConfig        `json:"audio"`
}

type CaptureState int

const (
	CaptureStarted CaptureState = iota
	CaptureStopped
	CaptureFailed
	CaptureEncoderFail
)

func (s CaptureState) EventName() string {
	switch s {
	case CaptureStarted:
		return "started"
	case CaptureStopped:
		return "stopped"
	case CaptureFailed, CaptureEncoderFail:
		return "failed"
	default:
		return "unknown"
	}
}

type RecordState int

const (
	RecordInitialized RecordState = iota
	RecordStarted
	RecordStopped
	RecordFailed
)

// RecordNotification is posted by the engine for recordings and snapshots.
type RecordNotification struct {
	State RecordState
	URL   string
}

// SessionStatus is a read-only view for callers.
type SessionStatus struct {
	ID          SessionID          `json:"id"`
	Active      bool               `json:"active"`
	Recording   bool               `json:"recording"`
	Video       VideoSessionConfig `json:"video"`
	Audio       AudioConfig        `json:"audio"`
	Connections int                `json:"connections"`
	StartedAt   time.Time          `json:"started_at,omitempty"`
}
