package ports

import (
	"context"

	"castmux/internal/core/domain"
)

// MediaEngine is the capture/encode/mux pipeline the session drives. Implementations
// report progress asynchronously through the NotificationSink they were built with.
// Flip may be called from a goroutine other than the one issuing the remaining calls.
type MediaEngine interface {
	CreateConnection(ctx context.Context, cfg domain.ConnectionConfig) (domain.ConnectionHandle, error)
	ReleaseConnection(handle domain.ConnectionHandle)
	PollStatistics(handle domain.ConnectionHandle) (domain.ConnectionCounters, error)

	Flip(ctx context.Context, cameraID string) error
	ActiveCameraID() string

	StartVideoCapture() error
	StartAudioCapture() error
	StopVideoCapture()
	StopAudioCapture()

	StartRecord(path string) error
	SplitRecord(path string) error
	StopRecord()
	TakeSnapshot(path string) error

	IsTorchOn() bool
	ToggleTorch()
	ZoomTo(factor float64)
	SetSilence(mute bool)

	Release()
}

// NotificationSink receives the engine's asynchronous state changes.
type NotificationSink interface {
	ConnectionStateChanged(n domain.ConnectionNotification)
	VideoCaptureStateChanged(state domain.CaptureState)
	AudioCaptureStateChanged(state domain.CaptureState)
	RecordStateChanged(n domain.RecordNotification)
	SnapshotStateChanged(n domain.RecordNotification)
}

type EngineFactory interface {
	Build(ctx context.Context, plan domain.SessionPlan, sink NotificationSink) (MediaEngine, error)
}

// CameraProvider enumerates the platform cameras in enumeration order.
type CameraProvider interface {
	Cameras(ctx context.Context) ([]domain.CameraDescriptor, error)
}
