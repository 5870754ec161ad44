package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"castmux/internal/core/domain"
)

const (
	exactFpsScore      = 0.01
	aspectTolerance    = 0.01
	defaultVideoWidth  = 1280
	defaultVideoHeight = 720
)

var sizeSeparators = regexp.MustCompile(`[*:x]`)

// NearestFpsRange picks the range containing target whose max is closest to it.
// The max distance is squared so the ceiling dominates the score.
// strict is accepted for callers that ask for an exact range; both modes score the same.
func NearestFpsRange(ranges []domain.FpsRange, target float64, strict bool) (domain.FpsRange, bool) {
	_ = strict

	minScore := math.MaxFloat64
	var best domain.FpsRange
	found := false

	for _, r := range ranges {
		if !r.Contains(target) {
			continue
		}
		score := (r.Max-target)*(r.Max-target) + math.Abs(r.Min-target)
		if score < minScore {
			best = r
			found = true
			if score < exactFpsScore {
				break
			}
			minScore = score
		}
	}
	return best, found
}

// FindFlipSize picks the secondary camera's size for a flip from a primary at size.
// Tiers, first match wins: exact size, narrower size with the same aspect ratio,
// size not larger on either side, first listed size.
func FindFlipSize(camera domain.CameraDescriptor, primary domain.Size) domain.Size {
	if len(camera.RecordSizes) == 0 {
		return primary
	}

	if camera.Supports(primary) {
		return primary
	}

	target := primary.Ratio()
	for _, s := range camera.RecordSizes {
		if s.Width >= primary.Width || s.Height == 0 {
			continue
		}
		if math.Abs(target/s.Ratio()-1) < aspectTolerance {
			return s
		}
	}

	for _, s := range camera.RecordSizes {
		if s.Width <= primary.Width && s.Height <= primary.Height {
			return s
		}
	}

	return camera.RecordSizes[0]
}

// FindCamera returns the camera with id, or the first one facing the requested way
// when id is empty.
func FindCamera(cameras []domain.CameraDescriptor, id string, facing domain.LensFacing) (domain.CameraDescriptor, bool) {
	for _, c := range cameras {
		if id == "" {
			if facing != domain.FacingUnspecified && c.Facing == facing {
				return c, true
			}
			continue
		}
		if c.ID == id {
			return c, true
		}
	}
	return domain.CameraDescriptor{}, false
}

// ParseSize reads "1920x1080", "1920*1080" or "1920:1080". Bad input yields 1280x720.
func ParseSize(res string, vertical bool) domain.Size {
	w, h := defaultVideoWidth, defaultVideoHeight

	parts := sizeSeparators.Split(res, -1)
	if len(parts) == 2 {
		pw, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
		ph, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errW == nil && errH == nil && pw > 0 && ph > 0 {
			w, h = pw, ph
		}
	}

	if vertical {
		return domain.Size{Width: h, Height: w}
	}
	return domain.Size{Width: w, Height: h}
}

// ParseFps reads "30" or "15-30"; a range yields its upper bound. Invalid input yields 0.
func ParseFps(s string) float64 {
	if i := strings.IndexByte(s, '-'); i > 0 {
		s = s[i+1:]
	}
	fps, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || fps < 0 {
		return 0
	}
	return fps
}

func FormatFpsRange(r domain.FpsRange) string {
	if r.Min == r.Max {
		return strconv.FormatFloat(r.Max, 'f', -1, 64)
	}
	return fmt.Sprintf("%s-%s",
		strconv.FormatFloat(r.Min, 'f', -1, 64),
		strconv.FormatFloat(r.Max, 'f', -1, 64))
}

// ParseFpsRange is the inverse of FormatFpsRange.
func ParseFpsRange(s string) (domain.FpsRange, error) {
	lo, hi := s, s
	if i := strings.IndexByte(s, '-'); i > 0 {
		lo, hi = s[:i], s[i+1:]
	}
	min, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return domain.FpsRange{}, fmt.Errorf("invalid fps range %q: %w", s, err)
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return domain.FpsRange{}, fmt.Errorf("invalid fps range %q: %w", s, err)
	}
	if min > max {
		return domain.FpsRange{}, fmt.Errorf("invalid fps range %q: min above max", s)
	}
	return domain.FpsRange{Min: min, Max: max}, nil
}

// ParseSizeStrict is ParseSize without the default fallback.
func ParseSizeStrict(res string) (domain.Size, error) {
	parts := sizeSeparators.Split(res, -1)
	if len(parts) != 2 {
		return domain.Size{}, fmt.Errorf("invalid size %q", res)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return domain.Size{}, fmt.Errorf("invalid size %q", res)
	}
	return domain.Size{Width: w, Height: h}, nil
}
