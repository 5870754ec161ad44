package domain

import "time"

type EventType string

const (
	EventCaptureState    EventType = "capture.state_changed"
	EventConnectionState EventType = "connection.state_changed"
	EventFileOperation   EventType = "file.operation"
	EventStats           EventType = "stats.snapshot"
	EventCameraChanged   EventType = "camera.changed"
)

// Event is the envelope every outward notification travels in.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID SessionID   `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

type CaptureStateEvent struct {
	State  string `json:"state"`
	Status string `json:"status"`
}

type ConnectionStateEvent struct {
	ConnectionID ConnectionHandle       `json:"connectionId"`
	State        string                 `json:"state"`
	Status       string                 `json:"status"`
	Info         map[string]interface{} `json:"info,omitempty"`
}

type FileOperationEvent struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Type   string `json:"type,omitempty"`
	Format string `json:"format,omitempty"`
}

type CameraChangedEvent struct {
	Camera CameraDescriptor `json:"camera"`
}
