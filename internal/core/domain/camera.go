package domain

import "fmt"

type LensFacing int

const (
	FacingUnspecified LensFacing = iota
	FacingFront
	FacingBack
)

func (f LensFacing) String() string {
	switch f {
	case FacingFront:
		return "front"
	case FacingBack:
		return "back"
	default:
		return "unspecified"
	}
}

func ParseLensFacing(s string) LensFacing {
	switch s {
	case "front":
		return FacingFront
	case "back":
		return FacingBack
	default:
		return FacingUnspecified
	}
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Ratio is width/height; zero when height is zero.
func (s Size) Ratio() float64 {
	if s.Height == 0 {
		return 0
	}
	return float64(s.Width) / float64(s.Height)
}

// FpsRange is an advertised frame rate range; Min == Max means a fixed rate.
type FpsRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r FpsRange) Contains(fps float64) bool {
	return r.Min <= fps && fps <= r.Max
}

// CameraDescriptor is a read-only snapshot of one camera's capabilities.
type CameraDescriptor struct {
	ID              string             `json:"camera_id"`
	Facing          LensFacing         `json:"lens_facing"`
	RecordSizes     []Size             `json:"record_sizes"`
	FpsRanges       []FpsRange         `json:"fps_ranges"`
	TorchSupported  bool               `json:"torch_supported"`
	ZoomSupported   bool               `json:"zoom_supported"`
	MaxZoom         float64            `json:"max_zoom,omitempty"`
	PhysicalCameras []CameraDescriptor `json:"physical_cameras,omitempty"`
}

func (c CameraDescriptor) Supports(size Size) bool {
	for _, s := range c.RecordSizes {
		if s == size {
			return true
		}
	}
	return false
}

// CameraConfig is one entry of the engine's flip list.
type CameraConfig struct {
	CameraID string    `json:"camera_id"`
	Size     Size      `json:"size"`
	FpsRange *FpsRange `json:"fps_range,omitempty"`
}
