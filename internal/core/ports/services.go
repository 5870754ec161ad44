package ports

import (
	"context"

	"castmux/internal/core/domain"
)

// SessionService is the caller-facing surface of a live streaming session.
type SessionService interface {
	ID() domain.SessionID
	Status(ctx context.Context) (domain.SessionStatus, error)

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Close()

	ResolveConfig(target string, opts domain.Options) (domain.ConnectionConfig, error)
	Connect(ctx context.Context, target string, opts domain.Options) (domain.ConnectionHandle, error)
	ConnectConfig(ctx context.Context, cfg domain.ConnectionConfig) (domain.ConnectionHandle, error)
	ReleaseConnection(ctx context.Context, handle domain.ConnectionHandle) error
	DisconnectAll(ctx context.Context) error
	Connections(ctx context.Context) ([]domain.ConnectionInfo, error)
	SetStatsInterval(ctx context.Context, seconds float64) error
	LatestStats(ctx context.Context) (*domain.StatsSnapshot, error)

	Cameras(ctx context.Context) ([]domain.CameraDescriptor, error)
	ActiveCamera(ctx context.Context) (domain.CameraDescriptor, error)
	SetCamera(ctx context.Context, cameraID string, facing domain.LensFacing) error
	SetVideoConfig(ctx context.Context, opts domain.Options) error
	SetAudioConfig(ctx context.Context, opts domain.Options) error
	SetTorch(ctx context.Context, on bool) error
	SetZoom(ctx context.Context, factor float64) error
	SetMute(ctx context.Context, mute bool) error

	StartRecord(ctx context.Context, filename string) error
	StopRecord(ctx context.Context) error
	TakeSnapshot(ctx context.Context, filename string) error
}
