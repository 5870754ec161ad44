package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"
	"castmux/pkg/tracing"
	"castmux/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionConfig carries the tunables a Session is created with.
type SessionConfig struct {
	CameraID      string
	Video         domain.VideoSessionConfig
	Audio         domain.AudioConfig
	StatsInterval time.Duration
	MaxAuthCycles int
	EventBuffer   int
	FlipTimeout   time.Duration
	VerticalVideo bool
	RecordDir     string
	SaveTimeout   time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Video:         domain.DefaultVideoConfig(),
		Audio:         domain.DefaultAudioConfig(),
		StatsInterval: time.Second,
		MaxAuthCycles: 8,
		EventBuffer:   256,
		FlipTimeout:   5 * time.Second,
		SaveTimeout:   2 * time.Second,
	}
}

type command struct {
	fn     func() error
	result chan error
}

// Session is the single owner of one streaming session. Every mutation runs on the
// goroutine started by NewSession; public methods hand work to it and wait.
type Session struct {
	id        domain.SessionID
	cfg       SessionConfig
	factory   ports.EngineFactory
	provider  ports.CameraProvider
	publisher ports.EventPublisher
	snapshots ports.SnapshotRepository
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger
	now       func() time.Time

	commands      chan command
	notifications chan func()
	pending       chan domain.StatsSnapshot
	quit          chan struct{}
	stopped       chan struct{}
	closeOnce     sync.Once
	wg            sync.WaitGroup

	// owned by the loop
	generation    uint64
	engine        ports.MediaEngine
	registry      *ConnectionRegistry
	aggregator    *StatsAggregator
	cameras       []domain.CameraDescriptor
	cameraID      string
	video         domain.VideoSessionConfig
	audio         domain.AudioConfig
	statsInterval time.Duration
	ticker        *time.Ticker
	tickC         <-chan time.Time
	recording     bool
	videoState    domain.CaptureState
	audioState    domain.CaptureState
	flipInFlight  bool
	startedAt     time.Time
	latest        *domain.StatsSnapshot
}

func NewSession(
	cfg SessionConfig,
	factory ports.EngineFactory,
	provider ports.CameraProvider,
	publisher ports.EventPublisher,
	snapshots ports.SnapshotRepository,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *Session {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 2 * time.Second
	}

	id := domain.SessionID(uuid.New().String())
	s := &Session{
		id:            id,
		cfg:           cfg,
		factory:       factory,
		provider:      provider,
		publisher:     publisher,
		snapshots:     snapshots,
		metrics:       metrics,
		logger:        logger.With("session_id", id),
		now:           time.Now,
		commands:      make(chan command),
		notifications: make(chan func(), cfg.EventBuffer),
		quit:          make(chan struct{}),
		stopped:       make(chan struct{}),
		cameraID:      cfg.CameraID,
		video:         cfg.Video,
		audio:         cfg.Audio,
		statsInterval: cfg.StatsInterval,
		videoState:    domain.CaptureStopped,
		audioState:    domain.CaptureStopped,
	}
	if s.cameraID == "" {
		s.cameraID = cfg.Video.CameraID
	}
	if snapshots != nil {
		s.pending = make(chan domain.StatsSnapshot, 1)
		s.wg.Add(1)
		go s.saveLoop()
	}

	go s.run()
	return s
}

func (s *Session) ID() domain.SessionID {
	return s.id
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case cmd := <-s.commands:
			cmd.result <- cmd.fn()
		case fn := <-s.notifications:
			fn()
		case <-s.tickC:
			s.collectStats()
		case <-s.quit:
			if s.engine != nil {
				s.teardown()
			}
			return
		}
	}
}

// do runs fn on the session loop and waits for its result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	return s.submit(ctx, fn, false)
}

// submit hands fn to the loop. Once the loop has taken it, fn runs to completion
// whatever happens to ctx; with wait set the caller still gets fn's result so a
// created handle or started engine is never orphaned.
func (s *Session) submit(ctx context.Context, fn func() error, wait bool) error {
	cmd := command{fn: fn, result: make(chan error, 1)}
	select {
	case s.commands <- cmd:
	case <-s.quit:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	if wait {
		return <-cmd.result
	}
	select {
	case err := <-cmd.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// exec runs a mutating operation under a span and always reports its outcome.
func (s *Session) exec(ctx context.Context, operation string, fn func() error) error {
	ctx, span := tracing.TraceSessionOperation(ctx, operation, string(s.id))
	defer span.End()

	err := s.submit(ctx, fn, true)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return err
}

// post queues fn behind earlier notifications. It is safe from any goroutine.
func (s *Session) post(fn func()) {
	select {
	case s.notifications <- fn:
	case <-s.quit:
	}
}

// Close stops a live session and ends the loop. Further calls return ErrSessionClosed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.stopped
		s.wg.Wait()
	})
}

func (s *Session) Start(ctx context.Context) error {
	return s.exec(ctx, "start", func() error {
		if s.engine != nil {
			return nil
		}

		cameras, err := s.loadCameras(ctx)
		if err != nil {
			return err
		}
		plan, err := BuildSessionPlan(cameras, s.cameraID, s.video, s.audio)
		if err != nil {
			return err
		}

		s.generation++
		engine, err := s.factory.Build(ctx, plan, sessionSink{s: s, gen: s.generation})
		if err != nil {
			return fmt.Errorf("build media engine: %w", err)
		}
		if err := engine.StartVideoCapture(); err != nil {
			engine.Release()
			return fmt.Errorf("start video capture: %w", err)
		}
		if err := engine.StartAudioCapture(); err != nil {
			engine.StopVideoCapture()
			engine.Release()
			return fmt.Errorf("start audio capture: %w", err)
		}

		s.engine = engine
		s.registry = NewConnectionRegistry(engine, s.metrics, s.logger, s.cfg.MaxAuthCycles)
		s.aggregator = NewStatsAggregator(s.registry, engine, s.logger)
		s.video = plan.Video
		s.cameraID = plan.ActiveCameraID
		s.startedAt = s.now()
		s.resetTicker()

		s.logger.Infow("session started",
			"camera_id", plan.ActiveCameraID,
			"size", plan.Video.Size.String(),
			"fps", plan.Video.Fps,
			"can_flip", plan.CanFlip,
		)
		return nil
	})
}

func (s *Session) Stop(ctx context.Context) error {
	return s.exec(ctx, "stop", func() error {
		if s.engine == nil {
			return nil
		}
		s.teardown()
		return nil
	})
}

// teardown stops the ticker before touching connections so no collection can run
// against a half-released registry.
func (s *Session) teardown() {
	s.stopTicker()
	s.registry.DisconnectAll()
	if s.recording {
		s.engine.StopRecord()
		s.recording = false
	}
	s.engine.StopAudioCapture()
	s.engine.StopVideoCapture()
	s.engine.Release()

	s.engine = nil
	s.registry = nil
	s.aggregator = nil
	s.flipInFlight = false
	s.startedAt = time.Time{}
	s.logger.Infow("session stopped")
}

func (s *Session) Status(ctx context.Context) (domain.SessionStatus, error) {
	var status domain.SessionStatus
	err := s.do(ctx, func() error {
		status = domain.SessionStatus{
			ID:        s.id,
			Active:    s.engine != nil,
			Recording: s.recording,
			Video:     s.video,
			Audio:     s.audio,
			StartedAt: s.startedAt,
		}
		if s.registry != nil {
			status.Connections = s.registry.Len()
		}
		return nil
	})
	if err != nil {
		return domain.SessionStatus{}, err
	}
	return status, nil
}

func (s *Session) ResolveConfig(target string, opts domain.Options) (domain.ConnectionConfig, error) {
	return ResolveConfig(target, opts)
}

func (s *Session) Connect(ctx context.Context, target string, opts domain.Options) (domain.ConnectionHandle, error) {
	cfg, err := ResolveConfig(target, opts)
	if err != nil {
		return domain.InvalidHandle, err
	}
	return s.ConnectConfig(ctx, cfg)
}

func (s *Session) ConnectConfig(ctx context.Context, cfg domain.ConnectionConfig) (domain.ConnectionHandle, error) {
	handle := domain.InvalidHandle
	err := s.exec(ctx, "connect", func() error {
		if s.registry == nil {
			return domain.ErrNoActiveSession
		}
		h, err := s.registry.Create(ctx, cfg)
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		return domain.InvalidHandle, err
	}
	return handle, nil
}

func (s *Session) ReleaseConnection(ctx context.Context, handle domain.ConnectionHandle) error {
	return s.exec(ctx, "release_connection", func() error {
		if s.registry != nil {
			s.registry.Release(handle)
		}
		return nil
	})
}

func (s *Session) DisconnectAll(ctx context.Context) error {
	return s.exec(ctx, "disconnect_all", func() error {
		if s.registry != nil {
			s.registry.DisconnectAll()
		}
		return nil
	})
}

func (s *Session) Connections(ctx context.Context) ([]domain.ConnectionInfo, error) {
	var out []domain.ConnectionInfo
	err := s.do(ctx, func() error {
		if s.registry == nil {
			out = []domain.ConnectionInfo{}
			return nil
		}
		out = s.registry.Info()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatsInterval changes the polling period; zero or negative disables polling.
func (s *Session) SetStatsInterval(ctx context.Context, seconds float64) error {
	return s.do(ctx, func() error {
		if seconds <= 0 {
			s.statsInterval = 0
		} else {
			s.statsInterval = time.Duration(seconds * float64(time.Second))
		}
		s.resetTicker()
		return nil
	})
}

func (s *Session) resetTicker() {
	s.stopTicker()
	if s.engine == nil || s.statsInterval <= 0 {
		return
	}
	s.ticker = time.NewTicker(s.statsInterval)
	s.tickC = s.ticker.C
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.ticker = nil
	s.tickC = nil
}

func (s *Session) collectStats() {
	if s.aggregator == nil {
		return
	}
	snapshot, emit := s.aggregator.Collect(context.Background(), s.recording)
	if !emit {
		return
	}
	snapshot.SessionID = s.id
	s.latest = &snapshot
	s.metrics.RecordStatsSnapshot(snapshot)
	s.publish(domain.EventStats, snapshot)
	s.persist(snapshot)
}

// persist queues snapshot for the save worker. A snapshot still waiting is
// replaced, so saves land in emission order and a slow store only loses
// intermediate ones.
func (s *Session) persist(snapshot domain.StatsSnapshot) {
	if s.pending == nil {
		return
	}
	select {
	case <-s.pending:
	default:
	}
	s.pending <- snapshot
}

func (s *Session) saveLoop() {
	defer s.wg.Done()
	for {
		select {
		case snapshot := <-s.pending:
			s.save(snapshot)
		case <-s.quit:
			select {
			case snapshot := <-s.pending:
				s.save(snapshot)
			default:
			}
			return
		}
	}
}

func (s *Session) save(snapshot domain.StatsSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
	defer cancel()
	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		s.logger.Warnw("failed to persist stats snapshot", "error", err)
	}
}

// LatestStats returns the last emitted snapshot, falling back to the repository.
func (s *Session) LatestStats(ctx context.Context) (*domain.StatsSnapshot, error) {
	var latest *domain.StatsSnapshot
	if err := s.do(ctx, func() error {
		if s.latest != nil {
			copied := *s.latest
			latest = &copied
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if latest != nil {
		return latest, nil
	}
	if s.snapshots == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return s.snapshots.Latest(ctx, s.id)
}

func (s *Session) loadCameras(ctx context.Context) ([]domain.CameraDescriptor, error) {
	if s.cameras != nil {
		return s.cameras, nil
	}
	if s.provider == nil {
		return nil, domain.ErrCameraNotFound
	}
	cameras, err := s.provider.Cameras(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate cameras: %w", err)
	}
	s.cameras = FlattenCameras(cameras)
	return s.cameras, nil
}

func (s *Session) Cameras(ctx context.Context) ([]domain.CameraDescriptor, error) {
	var out []domain.CameraDescriptor
	err := s.do(ctx, func() error {
		cameras, err := s.loadCameras(ctx)
		if err != nil {
			return err
		}
		out = make([]domain.CameraDescriptor, len(cameras))
		copy(out, cameras)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) ActiveCamera(ctx context.Context) (domain.CameraDescriptor, error) {
	var out domain.CameraDescriptor
	err := s.do(ctx, func() error {
		camera, ok := s.activeCamera()
		if !ok {
			return domain.ErrCameraNotFound
		}
		out = camera
		return nil
	})
	if err != nil {
		return domain.CameraDescriptor{}, err
	}
	return out, nil
}

func (s *Session) activeCamera() (domain.CameraDescriptor, bool) {
	id := s.cameraID
	if s.engine != nil {
		id = s.engine.ActiveCameraID()
	}
	return FindCamera(s.cameras, id, domain.FacingUnspecified)
}

// SetCamera switches the live session to another camera, or records the preference
// for the next Start. Only one switch may be pending; completion is reported with a
// camera changed event.
func (s *Session) SetCamera(ctx context.Context, cameraID string, facing domain.LensFacing) error {
	return s.exec(ctx, "set_camera", func() error {
		cameras, err := s.loadCameras(ctx)
		if err != nil {
			return err
		}
		target, ok := FindCamera(cameras, cameraID, facing)
		if !ok {
			return domain.ErrCameraNotFound
		}

		if s.engine == nil {
			s.cameraID = target.ID
			s.video.CameraID = target.ID
			return nil
		}
		if s.flipInFlight {
			return domain.ErrFlipInProgress
		}
		if target.ID == s.engine.ActiveCameraID() {
			return nil
		}

		s.flipInFlight = true
		engine := s.engine
		started := s.now()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			flipCtx, cancel := context.WithTimeout(context.Background(), s.cfg.FlipTimeout)
			defer cancel()
			err := engine.Flip(flipCtx, target.ID)
			s.post(func() { s.finishFlip(engine, started, err) })
		}()

		s.logger.Infow("camera flip requested", "camera_id", target.ID)
		return nil
	})
}

func (s *Session) finishFlip(engine ports.MediaEngine, started time.Time, err error) {
	if s.engine != engine {
		return
	}
	s.flipInFlight = false
	s.metrics.RecordFlip(err == nil, s.now().Sub(started).Seconds())
	if err != nil {
		s.logger.Warnw("camera flip failed", "error", err)
		return
	}

	id := engine.ActiveCameraID()
	camera, ok := FindCamera(s.cameras, id, domain.FacingUnspecified)
	if !ok {
		s.logger.Warnw("active camera missing from camera list", "camera_id", id)
		return
	}
	s.cameraID = id
	s.video.CameraID = id
	s.logger.Infow("camera flipped", "camera_id", id)
	s.publish(domain.EventCameraChanged, domain.CameraChangedEvent{Camera: camera})
}

// SetVideoConfig updates the stored encoder settings. They take effect on the next Start.
func (s *Session) SetVideoConfig(ctx context.Context, opts domain.Options) error {
	return s.do(ctx, func() error {
		ApplyVideoOptions(&s.video, opts, s.cfg.VerticalVideo)
		return nil
	})
}

func (s *Session) SetAudioConfig(ctx context.Context, opts domain.Options) error {
	return s.do(ctx, func() error {
		ApplyAudioOptions(&s.audio, opts)
		return nil
	})
}

func (s *Session) SetTorch(ctx context.Context, on bool) error {
	return s.do(ctx, func() error {
		if s.engine == nil {
			return domain.ErrNoActiveSession
		}
		camera, ok := s.activeCamera()
		if !ok || !camera.TorchSupported {
			s.logger.Debugw("torch not supported", "camera_id", camera.ID)
			return nil
		}
		if s.engine.IsTorchOn() != on {
			s.engine.ToggleTorch()
		}
		return nil
	})
}

func (s *Session) SetZoom(ctx context.Context, factor float64) error {
	return s.do(ctx, func() error {
		if s.engine == nil {
			return domain.ErrNoActiveSession
		}
		camera, ok := s.activeCamera()
		if !ok || !camera.ZoomSupported {
			s.logger.Debugw("zoom not supported", "camera_id", camera.ID)
			return nil
		}
		if factor < 1 {
			factor = 1
		}
		if camera.MaxZoom > 0 && factor > camera.MaxZoom {
			factor = camera.MaxZoom
		}
		s.engine.ZoomTo(factor)
		return nil
	})
}

func (s *Session) SetMute(ctx context.Context, mute bool) error {
	return s.do(ctx, func() error {
		if s.engine == nil {
			return domain.ErrNoActiveSession
		}
		s.engine.SetSilence(mute)
		return nil
	})
}

// StartRecord starts a local recording, or rolls over to a new file when one is
// already being written.
func (s *Session) StartRecord(ctx context.Context, filename string) error {
	return s.exec(ctx, "start_record", func() error {
		if s.engine == nil {
			return domain.ErrNoActiveSession
		}
		// Files always land in RecordDir.
		filename = utils.SanitizeFilename(filename)
		if filename == "" {
			filename = s.now().Format("20060102-150405") + ".mp4"
		}
		path := filepath.Join(s.cfg.RecordDir, filename)

		if s.recording {
			return s.engine.SplitRecord(path)
		}
		if err := s.engine.StartRecord(path); err != nil {
			return err
		}
		s.recording = true
		return nil
	})
}

func (s *Session) StopRecord(ctx context.Context) error {
	return s.exec(ctx, "stop_record", func() error {
		if s.engine == nil {
			return domain.ErrNoActiveSession
		}
		if s.recording {
			s.engine.StopRecord()
			s.recording = false
		}
		return nil
	})
}

func (s *Session) TakeSnapshot(ctx context.Context, filename string) error {
	return s.exec(ctx, "snapshot", func() error {
		if s.engine == nil {
			return domain.ErrNoActiveSession
		}
		filename = utils.SanitizeFilename(filename)
		if filename == "" {
			filename = "IMG_" + s.now().Format("20060102-150405") + ".jpg"
		}
		return s.engine.TakeSnapshot(filepath.Join(s.cfg.RecordDir, filename))
	})
}

func (s *Session) publish(eventType domain.EventType, payload interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(context.Background(), domain.Event{
		Type:      eventType,
		SessionID: s.id,
		Timestamp: s.now(),
		Payload:   payload,
	})
}

func (s *Session) onConnectionState(n domain.ConnectionNotification) {
	if s.registry == nil {
		return
	}
	out, tracked := s.registry.HandleStateChange(n)
	if !tracked {
		return
	}
	s.logger.Infow("connection state changed",
		"connection_id", out.Handle,
		"state", out.State,
		"status", out.Status,
	)
	s.publish(domain.EventConnectionState, domain.ConnectionStateEvent{
		ConnectionID: out.Handle,
		State:        out.State.EventName(),
		Status:       out.Status.String(),
		Info:         out.Info,
	})
}

func (s *Session) onCaptureState(video bool, state domain.CaptureState) {
	if s.engine == nil {
		return
	}
	if video {
		s.videoState = state
	} else {
		s.audioState = state
	}

	if s.videoState == domain.CaptureStarted && s.audioState == domain.CaptureStarted {
		s.publish(domain.EventCaptureState, domain.CaptureStateEvent{
			State:  state.EventName(),
			Status: "success",
		})
		return
	}
	if state == domain.CaptureStarted {
		return
	}

	s.logger.Infow("capture state changed", "video", video, "state", state.EventName())
	s.publish(domain.EventCaptureState, domain.CaptureStateEvent{
		State:  state.EventName(),
		Status: captureStatus(video, state),
	})
}

func captureStatus(video bool, state domain.CaptureState) string {
	prefix := "errorAudio"
	if video {
		prefix = "errorVideo"
	}
	switch state {
	case domain.CaptureFailed:
		return prefix
	case domain.CaptureEncoderFail:
		return prefix + "Encode"
	default:
		return ""
	}
}

// Record and snapshot notifications that arrive after teardown are stale.
func (s *Session) onRecordState(n domain.RecordNotification) {
	if s.engine == nil {
		return
	}
	var status string
	switch n.State {
	case domain.RecordStarted:
		status = "started"
		s.recording = true
	case domain.RecordStopped:
		status = "success"
		s.recording = false
	case domain.RecordFailed:
		status = "failed"
		s.recording = false
	default:
		return
	}
	event := domain.FileOperationEvent{Status: status}
	if n.URL != "" {
		event.URL, event.Type, event.Format = n.URL, "video", "mp4"
	}
	s.publish(domain.EventFileOperation, event)
}

func (s *Session) onSnapshotState(n domain.RecordNotification) {
	if s.engine == nil {
		return
	}
	var status string
	switch n.State {
	case domain.RecordStopped:
		status = "success"
	case domain.RecordFailed:
		status = "failed"
	default:
		return
	}
	event := domain.FileOperationEvent{Status: status}
	if n.URL != "" {
		event.URL, event.Type, event.Format = n.URL, "image", "jpg"
	}
	s.publish(domain.EventFileOperation, event)
}

// sessionSink forwards engine callbacks onto the session loop in arrival order.
// gen ties it to one engine build; callbacks from a replaced engine are dropped.
type sessionSink struct {
	s   *Session
	gen uint64
}

func (k sessionSink) deliver(fn func()) {
	k.s.post(func() {
		if k.gen != k.s.generation {
			return
		}
		fn()
	})
}

func (k sessionSink) ConnectionStateChanged(n domain.ConnectionNotification) {
	k.deliver(func() { k.s.onConnectionState(n) })
}

func (k sessionSink) VideoCaptureStateChanged(state domain.CaptureState) {
	k.deliver(func() { k.s.onCaptureState(true, state) })
}

func (k sessionSink) AudioCaptureStateChanged(state domain.CaptureState) {
	k.deliver(func() { k.s.onCaptureState(false, state) })
}

func (k sessionSink) RecordStateChanged(n domain.RecordNotification) {
	k.deliver(func() { k.s.onRecordState(n) })
}

func (k sessionSink) SnapshotStateChanged(n domain.RecordNotification) {
	k.deliver(func() { k.s.onSnapshotState(n) })
}

var _ ports.SessionService = (*Session)(nil)
