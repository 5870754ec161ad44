package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// CameraConfig describes one camera for the static camera provider. Sizes are "WxH",
// fps ranges are "30" or "15-30".
type CameraConfig struct {
	ID          string         `yaml:"id"`
	Facing      string         `yaml:"facing"`
	RecordSizes []string       `yaml:"record_sizes"`
	FpsRanges   []string       `yaml:"fps_ranges"`
	Torch       bool           `yaml:"torch"`
	Zoom        bool           `yaml:"zoom"`
	MaxZoom     float64        `yaml:"max_zoom"`
	Physical    []CameraConfig `yaml:"physical,omitempty"`
}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Session struct {
		CameraID      string        `yaml:"camera_id"`
		StatsInterval time.Duration `yaml:"stats_interval"` // 0 disables polling
		MaxAuthCycles int           `yaml:"max_auth_cycles"`
		EventBuffer   int           `yaml:"event_buffer"`
		FlipTimeout   time.Duration `yaml:"flip_timeout"`
		VerticalVideo bool          `yaml:"vertical_video"`
		RecordDir     string        `yaml:"record_dir"`
	} `yaml:"session"`

	Video struct {
		Resolution   string `yaml:"resolution"`
		Fps          string `yaml:"fps"`
		Format       string `yaml:"format"`
		BitrateKbps  int    `yaml:"bitrate_kbps"` // 0 picks a bitrate from resolution and fps
		Keyframe     int    `yaml:"keyframe"`
		LiveRotation string `yaml:"live_rotation"`
	} `yaml:"video"`

	Audio struct {
		BitrateKbps int `yaml:"bitrate_kbps"`
		Channels    int `yaml:"channels"`
		SampleRate  int `yaml:"sample_rate"`
	} `yaml:"audio"`

	Cameras []CameraConfig `yaml:"cameras"`

	Engine struct {
		Driver        string        `yaml:"driver"`
		ConnectDelay  time.Duration `yaml:"connect_delay"`
		SetupDelay    time.Duration `yaml:"setup_delay"`
		RecordDelay   time.Duration `yaml:"record_delay"`
		FlipDelay     time.Duration `yaml:"flip_delay"`
		BitrateBps    int64         `yaml:"bitrate_bps"`
		LossPerSecond float64       `yaml:"loss_per_second"`
	} `yaml:"engine"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Address      string        `yaml:"address"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size"`
		SnapshotTTL  time.Duration `yaml:"snapshot_ttl"`
		EventChannel string        `yaml:"event_channel"`
		DeviceLease  struct {
			Enabled bool          `yaml:"enabled"`
			Key     string        `yaml:"key"`
			TTL     time.Duration `yaml:"ttl"`
		} `yaml:"device_lease"`
	} `yaml:"redis"`

	Auth struct {
		Enabled        bool     `yaml:"enabled"`
		JWTSecret      string   `yaml:"jwt_secret"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int   `yaml:"connections_per_minute"`
			MaxConcurrent        int   `yaml:"max_concurrent_connections"`
			MaxMessageSizeBytes  int64 `yaml:"max_message_size_bytes"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Session
	if c.Session.StatsInterval < 0 {
		return fmt.Errorf("session.stats_interval must be >= 0")
	}
	if c.Session.MaxAuthCycles < 0 {
		return fmt.Errorf("session.max_auth_cycles must be >= 0")
	}
	if c.Session.EventBuffer <= 0 {
		return fmt.Errorf("session.event_buffer must be > 0")
	}
	if c.Session.FlipTimeout <= 0 {
		return fmt.Errorf("session.flip_timeout must be > 0")
	}

	// Media
	if c.Video.BitrateKbps < 0 {
		return fmt.Errorf("video.bitrate_kbps must be >= 0")
	}
	if c.Audio.Channels < 0 || c.Audio.Channels > 2 {
		return fmt.Errorf("audio.channels must be 1 or 2")
	}
	if len(c.Cameras) == 0 {
		return fmt.Errorf("at least one camera must be configured")
	}
	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("cameras[%d].id must not be empty", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("cameras[%d].id %q is duplicated", i, cam.ID)
		}
		seen[cam.ID] = true
		if len(cam.RecordSizes) == 0 {
			return fmt.Errorf("cameras[%d].record_sizes must not be empty", i)
		}
	}

	// Engine
	if c.Engine.Driver != "loopback" {
		return fmt.Errorf("engine.driver %q is not supported", c.Engine.Driver)
	}
	if c.Engine.BitrateBps < 0 || c.Engine.LossPerSecond < 0 {
		return fmt.Errorf("engine.bitrate_bps and engine.loss_per_second must be >= 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.EventChannel == "" {
			return fmt.Errorf("redis.event_channel must not be empty when redis.enabled=true")
		}
		if c.Redis.DeviceLease.Enabled {
			if c.Redis.DeviceLease.Key == "" {
				return fmt.Errorf("redis.device_lease.key must not be empty when the lease is enabled")
			}
			if c.Redis.DeviceLease.TTL < time.Second {
				return fmt.Errorf("redis.device_lease.ttl must be at least 1s")
			}
		}
	}

	// Auth
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty when auth.enabled=true")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	default:
		// a file that lists cameras replaces the default set
		cfg.Cameras = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
		if len(cfg.Cameras) == 0 {
			cfg.Cameras = defaultCameras()
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Session.StatsInterval = time.Second
	cfg.Session.MaxAuthCycles = 8
	cfg.Session.EventBuffer = 256
	cfg.Session.FlipTimeout = 5 * time.Second
	cfg.Session.RecordDir = os.TempDir()

	cfg.Video.Resolution = "1280x720"
	cfg.Video.Fps = "30"
	cfg.Video.Format = "avc"
	cfg.Video.Keyframe = 2
	cfg.Video.LiveRotation = "off"

	cfg.Audio.BitrateKbps = 128
	cfg.Audio.Channels = 2
	cfg.Audio.SampleRate = 44100

	cfg.Cameras = defaultCameras()

	cfg.Engine.Driver = "loopback"
	cfg.Engine.ConnectDelay = 200 * time.Millisecond
	cfg.Engine.SetupDelay = 100 * time.Millisecond
	cfg.Engine.RecordDelay = 100 * time.Millisecond
	cfg.Engine.FlipDelay = 300 * time.Millisecond
	cfg.Engine.BitrateBps = 2_000_000

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.SnapshotTTL = time.Hour
	cfg.Redis.EventChannel = "castmux:events"
	cfg.Redis.DeviceLease.Enabled = false
	cfg.Redis.DeviceLease.Key = "castmux:lease:default"
	cfg.Redis.DeviceLease.TTL = 15 * time.Second

	cfg.Auth.Enabled = false
	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AllowedOrigins = []string{"*"}

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 4 * 1024

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "castmux"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	return cfg
}

func defaultCameras() []CameraConfig {
	return []CameraConfig{
		{
			ID:          "0",
			Facing:      "back",
			RecordSizes: []string{"3840x2160", "1920x1080", "1280x720", "640x480"},
			FpsRanges:   []string{"15-30", "30", "60"},
			Torch:       true,
			Zoom:        true,
			MaxZoom:     8,
		},
		{
			ID:          "1",
			Facing:      "front",
			RecordSizes: []string{"1920x1080", "1280x720", "640x480"},
			FpsRanges:   []string{"15-30", "30"},
		},
	}
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CASTMUX_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("CASTMUX_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("CASTMUX_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("CASTMUX_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
}
