// Package loopback implements a media engine that performs no I/O. Connections walk
// through the usual state sequence on timers and report synthetic counters, which is
// enough to drive a session end to end in local runs and tests.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"

	"go.uber.org/zap"
)

var (
	ErrReleased          = errors.New("engine released")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrUnknownCamera     = errors.New("camera not in plan")
	ErrAlreadyRecording  = errors.New("already recording")
	ErrNotRecording      = errors.New("not recording")
)

// unreachableSuffix marks hosts that fail to connect, after RFC 2606.
const unreachableSuffix = ".invalid"

type Config struct {
	ConnectDelay  time.Duration
	SetupDelay    time.Duration
	RecordDelay   time.Duration
	FlipDelay     time.Duration
	BitrateBps    int64
	LossPerSecond float64
}

type connection struct {
	handle     domain.ConnectionHandle
	cfg        domain.ConnectionConfig
	state      domain.ConnectionState
	recordFrom time.Time
	timers     []*time.Timer
}

func (c *connection) stopTimers() {
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
}

// Engine is safe for concurrent use. Notifications are delivered in order from a
// single goroutine and never from inside an Engine method.
type Engine struct {
	cfg    Config
	plan   domain.SessionPlan
	sink   ports.NotificationSink
	now    func() time.Time
	logger *zap.SugaredLogger

	mu           sync.Mutex
	connections  map[domain.ConnectionHandle]*connection
	nextHandle   domain.ConnectionHandle
	activeCamera string
	videoOn      bool
	audioOn      bool
	torch        bool
	zoom         float64
	muted        bool
	recordPath   string
	released     bool

	queue *notifier
}

func NewEngine(cfg Config, plan domain.SessionPlan, sink ports.NotificationSink, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	e := &Engine{
		cfg:          cfg,
		plan:         plan,
		sink:         sink,
		now:          time.Now,
		logger:       logger,
		connections:  make(map[domain.ConnectionHandle]*connection),
		activeCamera: plan.ActiveCameraID,
		zoom:         1,
		queue:        newNotifier(),
	}
	go e.queue.run()
	return e
}

func (e *Engine) CreateConnection(ctx context.Context, cfg domain.ConnectionConfig) (domain.ConnectionHandle, error) {
	if err := ctx.Err(); err != nil {
		return domain.InvalidHandle, err
	}
	if err := cfg.Validate(); err != nil {
		return domain.InvalidHandle, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return domain.InvalidHandle, ErrReleased
	}

	c := &connection{
		handle: e.nextHandle,
		cfg:    cfg,
		state:  domain.StateInitialized,
	}
	e.nextHandle++
	e.connections[c.handle] = c

	e.notifyConnection(c.handle, domain.StateInitialized, domain.StatusSuccess, nil)
	e.schedule(c, e.cfg.ConnectDelay, func() { e.connect(c) })

	e.logger.Debugw("loopback connection created",
		"connection_id", c.handle,
		"kind", cfg.Kind,
		"host", hostOf(cfg),
	)
	return c.handle, nil
}

// schedule runs fn after d unless the connection is released first. Callers hold mu.
func (e *Engine) schedule(c *connection, d time.Duration, fn func()) {
	c.timers = append(c.timers, time.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.released || e.connections[c.handle] != c {
			return
		}
		fn()
	}))
}

func (e *Engine) connect(c *connection) {
	if strings.HasSuffix(hostOf(c.cfg), unreachableSuffix) {
		e.disconnect(c, domain.StatusConnFail)
		return
	}

	if g := c.cfg.Generic; g != nil && g.Auth != domain.AuthDefault {
		if g.Username == "" || g.Password == "" {
			e.disconnect(c, domain.StatusAuthFail)
			return
		}
		// Challenge based schemes reconnect once with the computed response.
		e.transition(c, domain.StateConnected)
		e.schedule(c, e.cfg.ConnectDelay, func() { e.established(c) })
		return
	}
	e.established(c)
}

func (e *Engine) established(c *connection) {
	e.transition(c, domain.StateConnected)
	e.schedule(c, e.cfg.SetupDelay, func() {
		e.transition(c, domain.StateSetup)
		e.schedule(c, e.cfg.RecordDelay, func() {
			c.recordFrom = e.now()
			e.transition(c, domain.StateRecord)
		})
	})
}

func (e *Engine) transition(c *connection, state domain.ConnectionState) {
	c.state = state
	e.notifyConnection(c.handle, state, domain.StatusSuccess, nil)
}

func (e *Engine) disconnect(c *connection, status domain.ConnectionStatus) {
	c.state = domain.StateDisconnected
	c.stopTimers()
	e.notifyConnection(c.handle, domain.StateDisconnected, status, nil)
}

func (e *Engine) notifyConnection(h domain.ConnectionHandle, state domain.ConnectionState, status domain.ConnectionStatus, info map[string]interface{}) {
	n := domain.ConnectionNotification{Handle: h, State: state, Status: status, Info: info}
	e.queue.push(func() { e.sink.ConnectionStateChanged(n) })
}

func (e *Engine) ReleaseConnection(handle domain.ConnectionHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.connections[handle]
	if !ok {
		return
	}
	delete(e.connections, handle)
	if c.state != domain.StateDisconnected {
		e.disconnect(c, domain.StatusSuccess)
	}
	c.stopTimers()
}

// PollStatistics reports bytes at the configured bitrate and losses at the configured
// rate, both accumulated since the connection reached RECORD.
func (e *Engine) PollStatistics(handle domain.ConnectionHandle) (domain.ConnectionCounters, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.connections[handle]
	if !ok {
		return domain.ConnectionCounters{}, fmt.Errorf("%w: %d", ErrUnknownConnection, handle)
	}
	now := e.now()
	counters := domain.ConnectionCounters{Timestamp: now}
	if c.state != domain.StateRecord || c.recordFrom.IsZero() {
		return counters, nil
	}

	elapsed := now.Sub(c.recordFrom).Seconds()
	counters.BytesSent = uint64(float64(e.cfg.BitrateBps) / 8 * elapsed)
	counters.PacketsLost = uint64(e.cfg.LossPerSecond * elapsed)
	return counters, nil
}

// Flip waits FlipDelay before switching cameras. ctx cancels the switch.
func (e *Engine) Flip(ctx context.Context, cameraID string) error {
	if !e.inPlan(cameraID) {
		return fmt.Errorf("%w: %s", ErrUnknownCamera, cameraID)
	}

	timer := time.NewTimer(e.cfg.FlipDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrReleased
	}
	e.activeCamera = cameraID
	// The new camera comes up with the torch off and no zoom.
	e.torch = false
	e.zoom = 1
	e.logger.Debugw("loopback camera switched", "camera_id", cameraID)
	return nil
}

func (e *Engine) inPlan(cameraID string) bool {
	for _, c := range e.plan.Cameras {
		if c.CameraID == cameraID {
			return true
		}
	}
	return false
}

func (e *Engine) ActiveCameraID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeCamera
}

func (e *Engine) StartVideoCapture() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrReleased
	}
	if !e.inPlan(e.activeCamera) {
		e.queue.push(func() { e.sink.VideoCaptureStateChanged(domain.CaptureFailed) })
		return fmt.Errorf("%w: %s", ErrUnknownCamera, e.activeCamera)
	}
	if !e.videoOn {
		e.videoOn = true
		e.queue.push(func() { e.sink.VideoCaptureStateChanged(domain.CaptureStarted) })
	}
	return nil
}

func (e *Engine) StartAudioCapture() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrReleased
	}
	if !e.audioOn {
		e.audioOn = true
		e.queue.push(func() { e.sink.AudioCaptureStateChanged(domain.CaptureStarted) })
	}
	return nil
}

func (e *Engine) StopVideoCapture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.videoOn {
		e.videoOn = false
		e.queue.push(func() { e.sink.VideoCaptureStateChanged(domain.CaptureStopped) })
	}
}

func (e *Engine) StopAudioCapture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.audioOn {
		e.audioOn = false
		e.queue.push(func() { e.sink.AudioCaptureStateChanged(domain.CaptureStopped) })
	}
}

func (e *Engine) StartRecord(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrReleased
	}
	if e.recordPath != "" {
		return ErrAlreadyRecording
	}
	e.recordPath = path
	e.pushRecord(domain.RecordStarted, path)
	return nil
}

// SplitRecord closes the current file and continues into path.
func (e *Engine) SplitRecord(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recordPath == "" {
		return ErrNotRecording
	}
	e.pushRecord(domain.RecordStopped, e.recordPath)
	e.recordPath = path
	e.pushRecord(domain.RecordStarted, path)
	return nil
}

func (e *Engine) StopRecord() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recordPath == "" {
		return
	}
	e.pushRecord(domain.RecordStopped, e.recordPath)
	e.recordPath = ""
}

func (e *Engine) pushRecord(state domain.RecordState, path string) {
	n := domain.RecordNotification{State: state, URL: path}
	e.queue.push(func() { e.sink.RecordStateChanged(n) })
}

func (e *Engine) TakeSnapshot(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrReleased
	}
	state := domain.RecordStopped
	if !e.videoOn {
		state = domain.RecordFailed
	}
	n := domain.RecordNotification{State: state, URL: path}
	e.queue.push(func() { e.sink.SnapshotStateChanged(n) })
	return nil
}

func (e *Engine) IsTorchOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.torch
}

func (e *Engine) ToggleTorch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.torch = !e.torch
}

func (e *Engine) ZoomTo(factor float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.zoom = factor
}

func (e *Engine) Zoom() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zoom
}

func (e *Engine) SetSilence(mute bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = mute
}

func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// Release stops every timer and the notification goroutine. It does not wait for a
// delivery already in progress.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return
	}
	e.released = true
	for h, c := range e.connections {
		c.stopTimers()
		delete(e.connections, h)
	}
	e.queue.close()
	e.logger.Debugw("loopback engine released")
}

func hostOf(cfg domain.ConnectionConfig) string {
	switch {
	case cfg.Srt != nil:
		return cfg.Srt.Host
	case cfg.Rist != nil:
		return uriHost(cfg.Rist.URI)
	case cfg.Generic != nil:
		return uriHost(cfg.Generic.URI)
	}
	return ""
}

func uriHost(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

var _ ports.MediaEngine = (*Engine)(nil)
