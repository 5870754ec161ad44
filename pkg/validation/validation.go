package validation

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxTargetLength   = 2048
	MaxFilenameLength = 255
	MaxCameraIDLength = 64

	// MaxStatsIntervalSeconds bounds the polling period callers may request.
	MaxStatsIntervalSeconds = 3600
)

var (
	// CameraIDRegex matches platform camera ids ("0", "1", "back-wide").
	CameraIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	RecordingExtensions = []string{".mp4"}
	SnapshotExtensions  = []string{".jpg", ".jpeg"}
)

// ValidateTarget checks a destination URL before it reaches the config resolver.
// Scheme and host rules belong to the resolver; this only rejects unusable text.
func ValidateTarget(target string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("target is required")
	}
	if len(target) > MaxTargetLength {
		return fmt.Errorf("target is too long (max %d characters)", MaxTargetLength)
	}
	if !utf8.ValidString(target) {
		return fmt.Errorf("target contains invalid characters")
	}
	for _, r := range target {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("target must not contain whitespace or control characters")
		}
	}
	return nil
}

// ValidateFilename accepts a bare file name with one of the allowed extensions.
// Directories are chosen by the server, so any path separator is rejected.
func ValidateFilename(name string, allowed []string) error {
	if name == "" {
		return fmt.Errorf("filename is required")
	}
	if len(name) > MaxFilenameLength {
		return fmt.Errorf("filename is too long (max %d characters)", MaxFilenameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("filename contains invalid characters")
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("filename must not contain a path")
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("filename must not start with a dot")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("filename contains control characters")
		}
	}

	if len(allowed) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("filename extension must be one of %s", strings.Join(allowed, ", "))
}

func ValidateCameraID(id string) error {
	if id == "" {
		return fmt.Errorf("camera id is required")
	}
	if len(id) > MaxCameraIDLength {
		return fmt.Errorf("camera id is too long (max %d characters)", MaxCameraIDLength)
	}
	if !CameraIDRegex.MatchString(id) {
		return fmt.Errorf("invalid camera id format")
	}
	return nil
}

// ValidateStatsInterval accepts any finite value up to MaxStatsIntervalSeconds; zero
// and negative values turn polling off.
func ValidateStatsInterval(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("stats interval must be a finite number")
	}
	if seconds > MaxStatsIntervalSeconds {
		return fmt.Errorf("stats interval is too long (max %d seconds)", MaxStatsIntervalSeconds)
	}
	return nil
}

// ValidateZoom accepts any positive finite factor; the session clamps it to the camera.
func ValidateZoom(factor float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return fmt.Errorf("zoom factor must be a positive number")
	}
	return nil
}

// ValidateLensFacing accepts the facing names used on the wire, or empty.
func ValidateLensFacing(facing string) error {
	switch facing {
	case "", "front", "back":
		return nil
	}
	return fmt.Errorf("lens facing must be front or back")
}
