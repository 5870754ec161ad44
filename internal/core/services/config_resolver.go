package services

import (
	"fmt"
	"net/url"
	"strconv"

	"castmux/internal/core/domain"
)

var (
	streamModes = map[string]domain.Mode{
		"av":    domain.ModeAudioVideo,
		"a":     domain.ModeAudioOnly,
		"audio": domain.ModeAudioOnly,
		"v":     domain.ModeVideoOnly,
		"video": domain.ModeVideoOnly,
	}

	authModes = map[string]domain.Auth{
		"lime":      domain.AuthLLNW,
		"limelight": domain.AuthLLNW,
		"peri":      domain.AuthPeriscope,
		"periscope": domain.AuthPeriscope,
		"rtmp":      domain.AuthRTMP,
		"adobe":     domain.AuthRTMP,
		"aka":       domain.AuthAkamai,
		"akamai":    domain.AuthAkamai,
	}

	srtConnectModes = map[string]domain.SrtConnectMode{
		"c":          domain.SrtCaller,
		"caller":     domain.SrtCaller,
		"l":          domain.SrtListener,
		"listen":     domain.SrtListener,
		"r":          domain.SrtRendezvous,
		"rendezvous": domain.SrtRendezvous,
	}

	ristProfiles = map[string]domain.RistProfile{
		"s":        domain.RistSimple,
		"simple":   domain.RistSimple,
		"m":        domain.RistMain,
		"main":     domain.RistMain,
		"a":        domain.RistAdvanced,
		"advanced": domain.RistAdvanced,
	}
)

const (
	schemeSrt  = "srt"
	schemeRist = "rist"
)

// ResolveConfig turns a destination URL and an option bag into a typed connection
// config. Unknown enum strings fall back to defaults; only an unusable target fails.
func ResolveConfig(target string, opts domain.Options) (domain.ConnectionConfig, error) {
	if target == "" {
		target, _ = opts.String("url")
	}
	if target == "" {
		return domain.ConnectionConfig{}, fmt.Errorf("%w: empty url", domain.ErrInvalidTarget)
	}

	u, err := url.Parse(target)
	if err != nil {
		return domain.ConnectionConfig{}, fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return domain.ConnectionConfig{}, fmt.Errorf("%w: %q has no scheme or host", domain.ErrInvalidTarget, target)
	}

	mode := ResolveMode(opts)

	switch u.Scheme {
	case schemeSrt:
		port, err := strconv.Atoi(u.Port())
		if err != nil || port <= 0 || port > 65535 {
			return domain.ConnectionConfig{}, fmt.Errorf("%w: srt target %q needs a port", domain.ErrInvalidTarget, target)
		}
		cfg := &domain.SrtConfig{
			Host: u.Hostname(),
			Port: port,
			Mode: mode,
		}
		applySrtOptions(cfg, opts)
		return domain.ConnectionConfig{Kind: domain.KindSrt, Srt: cfg}, nil

	case schemeRist:
		cfg := &domain.RistConfig{
			URI:     u.String(),
			Mode:    mode,
			Profile: domain.RistMain,
		}
		applyRistOptions(cfg, opts)
		return domain.ConnectionConfig{Kind: domain.KindRist, Rist: cfg}, nil

	default:
		cfg := &domain.GenericConfig{
			URI:  u.String(),
			Mode: mode,
		}
		applyGenericOptions(cfg, opts, u.User)
		return domain.ConnectionConfig{Kind: domain.KindGeneric, Generic: cfg}, nil
	}
}

// NormalizeConfig applies the resolver's rules to a caller-built config: the
// destination must have a scheme and host (or an SRT host and port), and an SRT
// passphrase survives only together with a valid key length. The result never
// shares variant pointers with cfg.
func NormalizeConfig(cfg domain.ConnectionConfig) (domain.ConnectionConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.ConnectionConfig{}, err
	}

	out := domain.ConnectionConfig{Kind: cfg.Kind}
	switch {
	case cfg.Srt != nil:
		srt := *cfg.Srt
		if srt.Host == "" || srt.Port <= 0 || srt.Port > 65535 {
			return domain.ConnectionConfig{}, fmt.Errorf("%w: srt config needs a host and port", domain.ErrInvalidTarget)
		}
		if srt.Passphrase == "" || !ValidSrtKeyLen(srt.PbKeyLen) {
			srt.Passphrase = ""
			srt.PbKeyLen = 0
		}
		out.Srt = &srt
	case cfg.Rist != nil:
		if err := checkURI(cfg.Rist.URI); err != nil {
			return domain.ConnectionConfig{}, err
		}
		rist := *cfg.Rist
		out.Rist = &rist
	case cfg.Generic != nil:
		if err := checkURI(cfg.Generic.URI); err != nil {
			return domain.ConnectionConfig{}, err
		}
		generic := *cfg.Generic
		out.Generic = &generic
	}
	return out, nil
}

func checkURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return fmt.Errorf("%w: %q has no scheme or host", domain.ErrInvalidTarget, uri)
	}
	return nil
}

func ResolveMode(opts domain.Options) domain.Mode {
	s, ok := opts.String("mode")
	if !ok {
		return domain.ModeAudioVideo
	}
	if m, ok := streamModes[s]; ok {
		return m
	}
	return domain.ModeAudioVideo
}

func ResolveAuth(s string) domain.Auth {
	if a, ok := authModes[s]; ok {
		return a
	}
	return domain.AuthDefault
}

func ResolveSrtConnectMode(s string) domain.SrtConnectMode {
	if m, ok := srtConnectModes[s]; ok {
		return m
	}
	return domain.SrtCaller
}

func ResolveRistProfile(s string) domain.RistProfile {
	if p, ok := ristProfiles[s]; ok {
		return p
	}
	return domain.RistMain
}

// ValidSrtKeyLen reports whether n is an AES key length SRT accepts.
func ValidSrtKeyLen(n int) bool {
	return n == 16 || n == 24 || n == 32
}

func applySrtOptions(cfg *domain.SrtConfig, opts domain.Options) {
	if s, ok := opts.String("connectMode"); ok {
		cfg.ConnectMode = ResolveSrtConnectMode(s)
	}

	keyLen, _ := opts.Int("pbkeylen")
	if passphrase, ok := opts.String("passphrase"); ok && ValidSrtKeyLen(keyLen) {
		cfg.Passphrase = passphrase
		cfg.PbKeyLen = keyLen
	}

	if v, ok := opts.Int("latency"); ok {
		cfg.Latency = v
	}
	if v, ok := opts.Int("maxbw"); ok {
		cfg.MaxBandwidth = v
	}
	if v, ok := opts.String("streamid"); ok {
		cfg.StreamID = v
	}
}

func applyRistOptions(cfg *domain.RistConfig, opts domain.Options) {
	if s, ok := opts.String("ristProfile"); ok {
		cfg.Profile = ResolveRistProfile(s)
	}
}

func applyGenericOptions(cfg *domain.GenericConfig, opts domain.Options, userinfo *url.Userinfo) {
	if userinfo != nil {
		cfg.Username = userinfo.Username()
		if pass, ok := userinfo.Password(); ok {
			cfg.Password = pass
		}
	}

	if user, ok := opts.String("user"); ok {
		cfg.Username = user
		if pass, ok := opts.String("pass"); ok {
			cfg.Password = pass
		}
	}

	if s, ok := opts.String("target"); ok {
		cfg.Auth = ResolveAuth(s)
	}
}
