package services

import (
	"context"
	"sync"
	"time"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"

	"github.com/stretchr/testify/mock"
)

type MockMediaEngine struct {
	mock.Mock
}

func (m *MockMediaEngine) CreateConnection(ctx context.Context, cfg domain.ConnectionConfig) (domain.ConnectionHandle, error) {
	args := m.Called(ctx, cfg)
	return args.Get(0).(domain.ConnectionHandle), args.Error(1)
}

func (m *MockMediaEngine) ReleaseConnection(handle domain.ConnectionHandle) {
	m.Called(handle)
}

func (m *MockMediaEngine) PollStatistics(handle domain.ConnectionHandle) (domain.ConnectionCounters, error) {
	args := m.Called(handle)
	return args.Get(0).(domain.ConnectionCounters), args.Error(1)
}

func (m *MockMediaEngine) Flip(ctx context.Context, cameraID string) error {
	return m.Called(ctx, cameraID).Error(0)
}

func (m *MockMediaEngine) ActiveCameraID() string {
	return m.Called().String(0)
}

func (m *MockMediaEngine) StartVideoCapture() error { return m.Called().Error(0) }
func (m *MockMediaEngine) StartAudioCapture() error { return m.Called().Error(0) }
func (m *MockMediaEngine) StopVideoCapture()        { m.Called() }
func (m *MockMediaEngine) StopAudioCapture()        { m.Called() }

func (m *MockMediaEngine) StartRecord(path string) error  { return m.Called(path).Error(0) }
func (m *MockMediaEngine) SplitRecord(path string) error  { return m.Called(path).Error(0) }
func (m *MockMediaEngine) StopRecord()                    { m.Called() }
func (m *MockMediaEngine) TakeSnapshot(path string) error { return m.Called(path).Error(0) }

func (m *MockMediaEngine) IsTorchOn() bool       { return m.Called().Bool(0) }
func (m *MockMediaEngine) ToggleTorch()          { m.Called() }
func (m *MockMediaEngine) ZoomTo(factor float64) { m.Called(factor) }
func (m *MockMediaEngine) SetSilence(mute bool)  { m.Called(mute) }
func (m *MockMediaEngine) Release()              { m.Called() }

// fakeEngine is a scripted engine for session tests. Notifications go through the
// sink from a separate goroutine, the way a real engine reports them.
type fakeEngine struct {
	mu sync.Mutex

	plan   domain.SessionPlan
	sink   ports.NotificationSink
	active string

	nextHandle  domain.ConnectionHandle
	released    []domain.ConnectionHandle
	counters    map[domain.ConnectionHandle]domain.ConnectionCounters
	calls       []string
	torch       bool
	zoom        float64
	muted       bool
	flipGate    chan struct{}
	flipErr     error
	createErr   error
	createGate  chan struct{}
	recordPaths []string

	queue chan func()
	done  chan struct{}
}

func newFakeEngine(plan domain.SessionPlan, sink ports.NotificationSink) *fakeEngine {
	e := &fakeEngine{
		plan:     plan,
		sink:     sink,
		active:   plan.ActiveCameraID,
		counters: make(map[domain.ConnectionHandle]domain.ConnectionCounters),
		queue:    make(chan func(), 64),
		done:     make(chan struct{}),
	}
	go e.dispatch()
	return e
}

func (e *fakeEngine) dispatch() {
	for {
		select {
		case fn := <-e.queue:
			fn()
		case <-e.done:
			return
		}
	}
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

func (e *fakeEngine) notify(fn func(ports.NotificationSink)) {
	select {
	case e.queue <- func() { fn(e.sink) }:
	case <-e.done:
	}
}

// Emit pushes a connection notification as if the engine produced it.
func (e *fakeEngine) Emit(h domain.ConnectionHandle, state domain.ConnectionState, status domain.ConnectionStatus) {
	e.notify(func(s ports.NotificationSink) {
		s.ConnectionStateChanged(domain.ConnectionNotification{Handle: h, State: state, Status: status})
	})
}

func (e *fakeEngine) CreateConnection(_ context.Context, _ domain.ConnectionConfig) (domain.ConnectionHandle, error) {
	e.mu.Lock()
	gate := e.createGate
	e.mu.Unlock()
	if gate != nil {
		e.record("create_pending")
		<-gate
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.createErr != nil {
		return domain.InvalidHandle, e.createErr
	}
	h := e.nextHandle
	e.nextHandle++
	e.calls = append(e.calls, "create")
	return h, nil
}

func (e *fakeEngine) ReleaseConnection(handle domain.ConnectionHandle) {
	e.mu.Lock()
	e.released = append(e.released, handle)
	e.calls = append(e.calls, "release_connection")
	e.mu.Unlock()
}

func (e *fakeEngine) Released() []domain.ConnectionHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ConnectionHandle, len(e.released))
	copy(out, e.released)
	return out
}

func (e *fakeEngine) SetCounters(handle domain.ConnectionHandle, c domain.ConnectionCounters) {
	e.mu.Lock()
	e.counters[handle] = c
	e.mu.Unlock()
}

func (e *fakeEngine) PollStatistics(handle domain.ConnectionHandle) (domain.ConnectionCounters, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters[handle], nil
}

func (e *fakeEngine) Flip(ctx context.Context, cameraID string) error {
	e.mu.Lock()
	gate, err := e.flipGate, e.flipErr
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.active = cameraID
	e.torch = false
	e.zoom = 1
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) ActiveCameraID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *fakeEngine) StartVideoCapture() error {
	e.record("start_video")
	e.notify(func(s ports.NotificationSink) { s.VideoCaptureStateChanged(domain.CaptureStarted) })
	return nil
}

func (e *fakeEngine) StartAudioCapture() error {
	e.record("start_audio")
	e.notify(func(s ports.NotificationSink) { s.AudioCaptureStateChanged(domain.CaptureStarted) })
	return nil
}

func (e *fakeEngine) StopVideoCapture() { e.record("stop_video") }
func (e *fakeEngine) StopAudioCapture() { e.record("stop_audio") }

func (e *fakeEngine) StartRecord(path string) error {
	e.mu.Lock()
	e.recordPaths = append(e.recordPaths, path)
	e.calls = append(e.calls, "start_record")
	e.mu.Unlock()
	e.notify(func(s ports.NotificationSink) {
		s.RecordStateChanged(domain.RecordNotification{State: domain.RecordStarted, URL: path})
	})
	return nil
}

func (e *fakeEngine) SplitRecord(path string) error {
	e.mu.Lock()
	e.recordPaths = append(e.recordPaths, path)
	e.calls = append(e.calls, "split_record")
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) StopRecord() {
	e.record("stop_record")
	e.notify(func(s ports.NotificationSink) {
		s.RecordStateChanged(domain.RecordNotification{State: domain.RecordStopped})
	})
}

func (e *fakeEngine) TakeSnapshot(path string) error {
	e.record("snapshot")
	e.notify(func(s ports.NotificationSink) {
		s.SnapshotStateChanged(domain.RecordNotification{State: domain.RecordStopped, URL: path})
	})
	return nil
}

func (e *fakeEngine) IsTorchOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.torch
}

func (e *fakeEngine) ToggleTorch() {
	e.mu.Lock()
	e.torch = !e.torch
	e.mu.Unlock()
}

func (e *fakeEngine) ZoomTo(factor float64) {
	e.mu.Lock()
	e.zoom = factor
	e.mu.Unlock()
}

func (e *fakeEngine) Zoom() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zoom
}

func (e *fakeEngine) SetSilence(mute bool) {
	e.mu.Lock()
	e.muted = mute
	e.mu.Unlock()
}

func (e *fakeEngine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *fakeEngine) Release() {
	e.record("release")
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}

// fakeFactory builds one fakeEngine per Build and remembers the last.
type fakeFactory struct {
	mu      sync.Mutex
	engine  *fakeEngine
	plans   []domain.SessionPlan
	prepare func(*fakeEngine)
}

func (f *fakeFactory) Build(_ context.Context, plan domain.SessionPlan, sink ports.NotificationSink) (ports.MediaEngine, error) {
	e := newFakeEngine(plan, sink)
	if f.prepare != nil {
		f.prepare(e)
	}
	f.mu.Lock()
	f.engine = e
	f.plans = append(f.plans, plan)
	f.mu.Unlock()
	return e, nil
}

func (f *fakeFactory) Engine() *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engine
}

type staticCameras []domain.CameraDescriptor

func (c staticCameras) Cameras(context.Context) ([]domain.CameraDescriptor, error) {
	return c, nil
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *capturePublisher) Publish(_ context.Context, event domain.Event) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *capturePublisher) Events(t domain.EventType) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// gatedSnapshots holds the first Save until gate closes and keeps every
// saved timestamp in call order.
type gatedSnapshots struct {
	*memorySnapshots

	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
	saved   []time.Time
}

func newGatedSnapshots() *gatedSnapshots {
	return &gatedSnapshots{
		memorySnapshots: newMemorySnapshots(),
		entered:         make(chan struct{}),
		gate:            make(chan struct{}),
	}
}

func (r *gatedSnapshots) Save(ctx context.Context, s domain.StatsSnapshot) error {
	r.mu.Lock()
	r.saved = append(r.saved, s.Timestamp)
	r.mu.Unlock()

	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-r.gate
	}
	return r.memorySnapshots.Save(ctx, s)
}

func (r *gatedSnapshots) Saved() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, len(r.saved))
	copy(out, r.saved)
	return out
}

type memorySnapshots struct {
	mu     sync.Mutex
	latest map[domain.SessionID]domain.StatsSnapshot
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{latest: make(map[domain.SessionID]domain.StatsSnapshot)}
}

func (r *memorySnapshots) Save(_ context.Context, s domain.StatsSnapshot) error {
	r.mu.Lock()
	r.latest[s.SessionID] = s
	r.mu.Unlock()
	return nil
}

func (r *memorySnapshots) Latest(_ context.Context, id domain.SessionID) (*domain.StatsSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.latest[id]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return &s, nil
}

func (r *memorySnapshots) Delete(_ context.Context, id domain.SessionID) error {
	r.mu.Lock()
	delete(r.latest, id)
	r.mu.Unlock()
	return nil
}
