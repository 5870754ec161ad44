package camera

import (
	"context"
	"fmt"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"
	"castmux/internal/core/services"
	"castmux/pkg/config"
)

// StaticProvider serves a camera list fixed at startup.
type StaticProvider struct {
	cameras []domain.CameraDescriptor
}

// NewStaticProvider converts configured cameras into descriptors. Any malformed size
// or fps range fails the whole list.
func NewStaticProvider(cfgs []config.CameraConfig) (*StaticProvider, error) {
	cameras := make([]domain.CameraDescriptor, 0, len(cfgs))
	for _, c := range cfgs {
		d, err := descriptor(c)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, d)
	}
	return &StaticProvider{cameras: cameras}, nil
}

func descriptor(c config.CameraConfig) (domain.CameraDescriptor, error) {
	d := domain.CameraDescriptor{
		ID:             c.ID,
		Facing:         domain.ParseLensFacing(c.Facing),
		TorchSupported: c.Torch,
		ZoomSupported:  c.Zoom,
	}
	if c.Zoom {
		d.MaxZoom = c.MaxZoom
	}

	for _, raw := range c.RecordSizes {
		size, err := services.ParseSizeStrict(raw)
		if err != nil {
			return domain.CameraDescriptor{}, fmt.Errorf("camera %s: %w", c.ID, err)
		}
		d.RecordSizes = append(d.RecordSizes, size)
	}
	for _, raw := range c.FpsRanges {
		r, err := services.ParseFpsRange(raw)
		if err != nil {
			return domain.CameraDescriptor{}, fmt.Errorf("camera %s: %w", c.ID, err)
		}
		d.FpsRanges = append(d.FpsRanges, r)
	}
	for _, p := range c.Physical {
		physical, err := descriptor(p)
		if err != nil {
			return domain.CameraDescriptor{}, fmt.Errorf("camera %s: %w", c.ID, err)
		}
		d.PhysicalCameras = append(d.PhysicalCameras, physical)
	}
	return d, nil
}

// Cameras returns a copy; callers may not mutate the provider's list.
func (p *StaticProvider) Cameras(ctx context.Context) ([]domain.CameraDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.CameraDescriptor, len(p.cameras))
	copy(out, p.cameras)
	return out, nil
}

var _ ports.CameraProvider = (*StaticProvider)(nil)
