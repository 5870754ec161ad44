package domain

import (
	"fmt"
	"time"
)

// ConnectionHandle identifies one outbound connection. The media engine assigns it;
// negative values are failure sentinels.
type ConnectionHandle int

const InvalidHandle ConnectionHandle = -1

func (h ConnectionHandle) Valid() bool {
	return h >= 0
}

type ConnectionState int

const (
	StateInitialized ConnectionState = iota
	StateConnected
	StateSetup
	StateRecord
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
	case StateConnected:
		return "CONNECTED"
	case StateSetup:
		return "SETUP"
	case StateRecord:
		return "RECORD"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// EventName is the name observers see for the state.
func (s ConnectionState) EventName() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateConnected:
		return "connected"
	case StateSetup:
		return "setup"
	case StateRecord:
		return "streaming"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type ConnectionStatus int

const (
	StatusSuccess ConnectionStatus = iota
	StatusConnFail
	StatusAuthFail
	StatusUnknownFail
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusConnFail:
		return "connectionFail"
	case StatusAuthFail:
		return "authFail"
	case StatusUnknownFail:
		return "unknownFail"
	default:
		return ""
	}
}

type Mode int

const (
	ModeAudioVideo Mode = iota
	ModeAudioOnly
	ModeVideoOnly
)

func (m Mode) String() string {
	switch m {
	case ModeAudioOnly:
		return "audio_only"
	case ModeVideoOnly:
		return "video_only"
	default:
		return "audio_video"
	}
}

type Auth int

const (
	AuthDefault Auth = iota
	AuthRTMP
	AuthLLNW
	AuthPeriscope
	AuthAkamai
)

func (a Auth) String() string {
	switch a {
	case AuthRTMP:
		return "rtmp"
	case AuthLLNW:
		return "llnw"
	case AuthPeriscope:
		return "periscope"
	case AuthAkamai:
		return "akamai"
	default:
		return "default"
	}
}

type SrtConnectMode int

const (
	SrtCaller SrtConnectMode = iota
	SrtListener
	SrtRendezvous
)

func (m SrtConnectMode) String() string {
	switch m {
	case SrtListener:
		return "listener"
	case SrtRendezvous:
		return "rendezvous"
	default:
		return "caller"
	}
}

type RistProfile int

const (
	RistSimple RistProfile = iota
	RistMain
	RistAdvanced
)

func (p RistProfile) String() string {
	switch p {
	case RistSimple:
		return "simple"
	case RistAdvanced:
		return "advanced"
	default:
		return "main"
	}
}

type ConnectionKind string

const (
	KindGeneric ConnectionKind = "generic"
	KindSrt     ConnectionKind = "srt"
	KindRist    ConnectionKind = "rist"
)

// GenericConfig targets TCP based destinations (RTMP and friends).
type GenericConfig struct {
	URI      string `json:"uri"`
	Mode     Mode   `json:"mode"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Auth     Auth   `json:"auth"`
}

type SrtConfig struct {
	Host         string         `json:"host"`
	Port         int            `json:"port"`
	Mode         Mode           `json:"mode"`
	ConnectMode  SrtConnectMode `json:"connect_mode"`
	Passphrase   string         `json:"passphrase,omitempty"`
	PbKeyLen     int            `json:"pbkeylen,omitempty"`
	Latency      int            `json:"latency,omitempty"` // ms
	MaxBandwidth int            `json:"maxbw,omitempty"`
	StreamID     string         `json:"streamid,omitempty"`
}

type RistConfig struct {
	URI     string      `json:"uri"`
	Mode    Mode        `json:"mode"`
	Profile RistProfile `json:"profile"`
}

// ConnectionConfig is a tagged union: Kind names the one populated variant.
type ConnectionConfig struct {
	Kind    ConnectionKind `json:"kind"`
	Generic *GenericConfig `json:"generic,omitempty"`
	Srt     *SrtConfig     `json:"srt,omitempty"`
	Rist    *RistConfig    `json:"rist,omitempty"`
}

func (c ConnectionConfig) Validate() error {
	populated := 0
	if c.Generic != nil {
		populated++
	}
	if c.Srt != nil {
		populated++
	}
	if c.Rist != nil {
		populated++
	}
	if populated != 1 {
		return fmt.Errorf("%w: %d variants populated", ErrInvalidConfig, populated)
	}

	switch {
	case c.Kind == KindGeneric && c.Generic != nil,
		c.Kind == KindSrt && c.Srt != nil,
		c.Kind == KindRist && c.Rist != nil:
		return nil
	}
	return fmt.Errorf("%w: kind %q does not match populated variant", ErrInvalidConfig, c.Kind)
}

func (c ConnectionConfig) Mode() Mode {
	switch {
	case c.Srt != nil:
		return c.Srt.Mode
	case c.Rist != nil:
		return c.Rist.Mode
	case c.Generic != nil:
		return c.Generic.Mode
	}
	return ModeAudioVideo
}

// Destination is the address the connection streams to, as a URL.
func (c ConnectionConfig) Destination() string {
	switch {
	case c.Srt != nil:
		return fmt.Sprintf("srt://%s:%d", c.Srt.Host, c.Srt.Port)
	case c.Rist != nil:
		return c.Rist.URI
	case c.Generic != nil:
		return c.Generic.URI
	}
	return ""
}

// ConnectionCounters is what the media engine reports for one connection on poll.
type ConnectionCounters struct {
	BytesSent   uint64
	PacketsLost uint64
	Timestamp   time.Time
}

// ConnectionNotification is posted by the media engine on every state change.
type ConnectionNotification struct {
	Handle ConnectionHandle
	State  ConnectionState
	Status ConnectionStatus
	Info   map[string]interface{}
}
