package services

import (
	"castmux/internal/core/domain"
)

// BuildSessionPlan lays out the engine's flip list: the active camera first at the
// requested size, then every other camera in enumeration order sized by FindFlipSize.
// All entries share the active camera's nearest fps range.
func BuildSessionPlan(
	cameras []domain.CameraDescriptor,
	activeID string,
	video domain.VideoSessionConfig,
	audio domain.AudioConfig,
) (domain.SessionPlan, error) {
	if len(cameras) == 0 {
		return domain.SessionPlan{}, domain.ErrCameraNotFound
	}

	active, ok := FindCamera(cameras, activeID, domain.FacingUnspecified)
	if !ok {
		active = cameras[0]
	}

	var fpsRange *domain.FpsRange
	if r, ok := NearestFpsRange(active.FpsRanges, video.Fps, false); ok {
		fpsRange = &r
	}

	video.CameraID = active.ID
	plan := domain.SessionPlan{
		ActiveCameraID: active.ID,
		Video:          video,
		Audio:          audio,
		Cameras: []domain.CameraConfig{{
			CameraID: active.ID,
			Size:     video.Size,
			FpsRange: fpsRange,
		}},
	}

	plan.CanFlip = len(cameras) > 1
	if !plan.CanFlip {
		return plan, nil
	}

	for _, c := range cameras {
		if c.ID == active.ID {
			continue
		}
		plan.Cameras = append(plan.Cameras, domain.CameraConfig{
			CameraID: c.ID,
			Size:     FindFlipSize(c, video.Size),
			FpsRange: fpsRange,
		})
	}
	return plan, nil
}

// FlattenCameras expands logical cameras with their physical sub-cameras, keeping
// enumeration order. Sub-camera ids are prefixed with the logical id.
func FlattenCameras(cameras []domain.CameraDescriptor) []domain.CameraDescriptor {
	out := make([]domain.CameraDescriptor, 0, len(cameras))
	for _, c := range cameras {
		out = append(out, c)
		for _, sub := range c.PhysicalCameras {
			sub.ID = c.ID + sub.ID
			out = append(out, sub)
		}
	}
	return out
}
