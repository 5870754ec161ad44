package services

import (
	"castmux/internal/core/domain"
)

// ApplyVideoOptions updates cfg from a settings bag. vertical swaps the encoder size so
// portrait video is encoded upright while the camera keeps its landscape size.
func ApplyVideoOptions(cfg *domain.VideoSessionConfig, opts domain.Options, vertical bool) {
	if res, ok := opts.String("res"); ok && res != "" {
		cfg.Size = ParseSize(res, false)
		cfg.EncoderSize = ParseSize(res, vertical)
	}

	if s, ok := opts.String("fps"); ok {
		if fps := ParseFps(s); fps > 0 {
			cfg.Fps = fps
		}
	}

	if format, ok := opts.String("format"); ok {
		switch format {
		case "avc", "h264":
			cfg.Codec = domain.CodecH264
		case "hevc", "h265":
			cfg.Codec = domain.CodecHEVC
		}
	}

	kbps, _ := opts.Int("bitrate")
	if kbps <= 0 {
		kbps = RecommendedBitrateKbps(cfg.Codec, cfg.EncoderSize.Height, cfg.Fps)
	}
	cfg.Bitrate = kbps * 1000

	if interval, ok := opts.Int("keyframe"); ok && interval > 0 {
		cfg.KeyFrameInterval = interval
	}

	if rotation, ok := opts.String("liveRotation"); ok {
		switch rotation {
		case "off":
			cfg.LiveRotation = domain.RotationOff
		case "on", "follow":
			cfg.LiveRotation = domain.RotationFollow
		case "lock":
			cfg.LiveRotation = domain.RotationLocked
		}
	}
}

func ApplyAudioOptions(cfg *domain.AudioConfig, opts domain.Options) {
	if kbps, ok := opts.Int("bitrate"); ok && kbps > 0 {
		cfg.Bitrate = kbps * 1000
	}
	if channels, ok := opts.Int("channels"); ok && channels > 0 {
		cfg.Channels = channels
	}
	if samples, ok := opts.Int("samples"); ok && samples > 0 {
		cfg.SampleRate = samples
	}
}

// RecommendedBitrateKbps is the default encoder bitrate for a frame height at 30 fps,
// scaled for higher frame rates. HEVC gets roughly two thirds of the AVC rate.
func RecommendedBitrateKbps(codec domain.Codec, height int, fps float64) int {
	var kbps int
	switch {
	case height >= 2160:
		kbps = 16000
	case height >= 1440:
		kbps = 9000
	case height >= 1080:
		kbps = 4500
	case height >= 720:
		kbps = 2000
	case height >= 540:
		kbps = 1500
	case height >= 480:
		kbps = 1000
	default:
		kbps = 500
	}

	if fps > 30 {
		kbps = kbps * 3 / 2
	}
	if codec == domain.CodecHEVC {
		kbps = kbps * 2 / 3
	}
	return kbps
}
