package services

import (
	"testing"

	"castmux/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestRecommendedBitrateKbps(t *testing.T) {
	tests := []struct {
		codec  domain.Codec
		height int
		fps    float64
		want   int
	}{
		{domain.CodecH264, 360, 30, 500},
		{domain.CodecH264, 480, 30, 1000},
		{domain.CodecH264, 540, 30, 1500},
		{domain.CodecH264, 720, 30, 2000},
		{domain.CodecH264, 1080, 30, 4500},
		{domain.CodecH264, 1080, 60, 6750},
		{domain.CodecH264, 1440, 30, 9000},
		{domain.CodecHEVC, 1080, 30, 3000},
		{domain.CodecHEVC, 2160, 60, 16000},
	}

	for _, tt := range tests {
		got := RecommendedBitrateKbps(tt.codec, tt.height, tt.fps)
		assert.Equal(t, tt.want, got, "%s %dp%v", tt.codec, tt.height, tt.fps)
	}
}

func TestApplyVideoOptions(t *testing.T) {
	tests := []struct {
		name     string
		opts     domain.Options
		vertical bool
		check    func(t *testing.T, cfg domain.VideoSessionConfig)
	}{
		{
			name: "resolution fps and format",
			opts: domain.Options{"res": "1920x1080", "fps": "15-60", "format": "hevc"},
			check: func(t *testing.T, cfg domain.VideoSessionConfig) {
				assert.Equal(t, size(1920, 1080), cfg.Size)
				assert.Equal(t, size(1920, 1080), cfg.EncoderSize)
				assert.Equal(t, 60.0, cfg.Fps)
				assert.Equal(t, domain.CodecHEVC, cfg.Codec)
				assert.Equal(t, 4500*1000, cfg.Bitrate)
			},
		},
		{
			name:     "vertical swaps encoder size only",
			opts:     domain.Options{"res": "1280x720"},
			vertical: true,
			check: func(t *testing.T, cfg domain.VideoSessionConfig) {
				assert.Equal(t, size(1280, 720), cfg.Size)
				assert.Equal(t, size(720, 1280), cfg.EncoderSize)
			},
		},
		{
			name: "explicit bitrate in kbps",
			opts: domain.Options{"bitrate": float64(3500), "keyframe": 4},
			check: func(t *testing.T, cfg domain.VideoSessionConfig) {
				assert.Equal(t, 3500*1000, cfg.Bitrate)
				assert.Equal(t, 4, cfg.KeyFrameInterval)
			},
		},
		{
			name: "live rotation values",
			opts: domain.Options{"liveRotation": "lock"},
			check: func(t *testing.T, cfg domain.VideoSessionConfig) {
				assert.Equal(t, domain.RotationLocked, cfg.LiveRotation)
			},
		},
		{
			name: "unknown values are ignored",
			opts: domain.Options{"fps": "fast", "format": "vp9", "liveRotation": "spin", "keyframe": -1},
			check: func(t *testing.T, cfg domain.VideoSessionConfig) {
				def := domain.DefaultVideoConfig()
				assert.Equal(t, def.Fps, cfg.Fps)
				assert.Equal(t, def.Codec, cfg.Codec)
				assert.Equal(t, def.LiveRotation, cfg.LiveRotation)
				assert.Equal(t, def.KeyFrameInterval, cfg.KeyFrameInterval)
				assert.Equal(t, 2000*1000, cfg.Bitrate)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultVideoConfig()
			ApplyVideoOptions(&cfg, tt.opts, tt.vertical)
			tt.check(t, cfg)
		})
	}
}

func TestApplyAudioOptions(t *testing.T) {
	cfg := domain.DefaultAudioConfig()
	ApplyAudioOptions(&cfg, domain.Options{"bitrate": 96, "channels": "1", "samples": float64(48000)})

	assert.Equal(t, domain.AudioConfig{Bitrate: 96000, Channels: 1, SampleRate: 48000}, cfg)

	ApplyAudioOptions(&cfg, domain.Options{"bitrate": 0, "channels": -2})
	assert.Equal(t, 96000, cfg.Bitrate)
	assert.Equal(t, 1, cfg.Channels)
}
