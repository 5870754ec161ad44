package domain

import "errors"

var (
	ErrInvalidTarget          = errors.New("invalid target")
	ErrConnectionCreateFailed = errors.New("connection create failed")
	ErrNoActiveSession        = errors.New("no active session")
	ErrUnsupportedCapability  = errors.New("unsupported capability")
	ErrFlipInProgress         = errors.New("camera flip already in progress")
	ErrSessionClosed          = errors.New("session closed")
	ErrInvalidConfig          = errors.New("invalid connection config")
	ErrCameraNotFound         = errors.New("camera not found")
	ErrSnapshotNotFound       = errors.New("stats snapshot not found")
	ErrDeviceBusy             = errors.New("capture device leased by another instance")
)
