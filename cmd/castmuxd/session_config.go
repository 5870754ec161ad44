package main

import (
	"castmux/internal/core/domain"
	"castmux/internal/core/services"
	"castmux/pkg/config"
)

// sessionConfig maps the configuration file onto session tunables. Video and audio
// go through the same option parsing the settings API uses.
func sessionConfig(cfg *config.Config) services.SessionConfig {
	sc := services.DefaultSessionConfig()
	sc.CameraID = cfg.Session.CameraID
	sc.StatsInterval = cfg.Session.StatsInterval
	sc.MaxAuthCycles = cfg.Session.MaxAuthCycles
	sc.EventBuffer = cfg.Session.EventBuffer
	sc.FlipTimeout = cfg.Session.FlipTimeout
	sc.VerticalVideo = cfg.Session.VerticalVideo
	sc.RecordDir = cfg.Session.RecordDir

	video := domain.Options{
		"res":          cfg.Video.Resolution,
		"fps":          cfg.Video.Fps,
		"format":       cfg.Video.Format,
		"bitrate":      cfg.Video.BitrateKbps,
		"keyframe":     cfg.Video.Keyframe,
		"liveRotation": cfg.Video.LiveRotation,
	}
	services.ApplyVideoOptions(&sc.Video, video, cfg.Session.VerticalVideo)
	if cfg.Session.CameraID != "" {
		sc.Video.CameraID = cfg.Session.CameraID
	}

	services.ApplyAudioOptions(&sc.Audio, domain.Options{
		"bitrate":  cfg.Audio.BitrateKbps,
		"channels": cfg.Audio.Channels,
		"samples":  cfg.Audio.SampleRate,
	})
	return sc
}
