package loopback

import (
	"context"
	"sync"
	"testing"
	"time"

	"castmux/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu          sync.Mutex
	connections []domain.ConnectionNotification
	video       []domain.CaptureState
	audio       []domain.CaptureState
	records     []domain.RecordNotification
	snapshots   []domain.RecordNotification
}

func (s *recordingSink) ConnectionStateChanged(n domain.ConnectionNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections = append(s.connections, n)
}

func (s *recordingSink) VideoCaptureStateChanged(state domain.CaptureState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = append(s.video, state)
}

func (s *recordingSink) AudioCaptureStateChanged(state domain.CaptureState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, state)
}

func (s *recordingSink) RecordStateChanged(n domain.RecordNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, n)
}

func (s *recordingSink) SnapshotStateChanged(n domain.RecordNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, n)
}

func (s *recordingSink) states(h domain.ConnectionHandle) []domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ConnectionState
	for _, n := range s.connections {
		if n.Handle == h {
			out = append(out, n.State)
		}
	}
	return out
}

func (s *recordingSink) last(h domain.ConnectionHandle) (domain.ConnectionNotification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.connections) - 1; i >= 0; i-- {
		if s.connections[i].Handle == h {
			return s.connections[i], true
		}
	}
	return domain.ConnectionNotification{}, false
}

func testPlan() domain.SessionPlan {
	return domain.SessionPlan{
		ActiveCameraID: "0",
		Cameras: []domain.CameraConfig{
			{CameraID: "0", Size: domain.Size{Width: 1280, Height: 720}},
			{CameraID: "1", Size: domain.Size{Width: 1280, Height: 720}},
		},
		CanFlip: true,
		Video:   domain.DefaultVideoConfig(),
		Audio:   domain.DefaultAudioConfig(),
	}
}

func fastConfig() Config {
	return Config{
		ConnectDelay: time.Millisecond,
		SetupDelay:   time.Millisecond,
		RecordDelay:  time.Millisecond,
		FlipDelay:    time.Millisecond,
		BitrateBps:   8_000_000,
	}
}

func rtmp(uri string) domain.ConnectionConfig {
	return domain.ConnectionConfig{
		Kind:    domain.KindGeneric,
		Generic: &domain.GenericConfig{URI: uri},
	}
}

func TestEngine_ConnectionLifecycle(t *testing.T) {
	tests := []struct {
		name       string
		cfg        domain.ConnectionConfig
		wantStates []domain.ConnectionState
		wantStatus domain.ConnectionStatus
	}{
		{
			name: "reaches record",
			cfg:  rtmp("rtmp://live.example.com/app/key"),
			wantStates: []domain.ConnectionState{
				domain.StateInitialized, domain.StateConnected, domain.StateSetup, domain.StateRecord,
			},
			wantStatus: domain.StatusSuccess,
		},
		{
			name: "unreachable host",
			cfg:  rtmp("rtmp://nowhere.invalid/app/key"),
			wantStates: []domain.ConnectionState{
				domain.StateInitialized, domain.StateDisconnected,
			},
			wantStatus: domain.StatusConnFail,
		},
		{
			name: "auth without credentials",
			cfg: domain.ConnectionConfig{
				Kind:    domain.KindGeneric,
				Generic: &domain.GenericConfig{URI: "rtmp://cdn.example.com/app/key", Auth: domain.AuthLLNW},
			},
			wantStates: []domain.ConnectionState{
				domain.StateInitialized, domain.StateDisconnected,
			},
			wantStatus: domain.StatusAuthFail,
		},
		{
			name: "challenge auth reconnects once",
			cfg: domain.ConnectionConfig{
				Kind: domain.KindGeneric,
				Generic: &domain.GenericConfig{
					URI: "rtmp://cdn.example.com/app/key", Auth: domain.AuthAkamai,
					Username: "user", Password: "secret",
				},
			},
			wantStates: []domain.ConnectionState{
				domain.StateInitialized, domain.StateConnected, domain.StateConnected,
				domain.StateSetup, domain.StateRecord,
			},
			wantStatus: domain.StatusSuccess,
		},
		{
			name: "srt",
			cfg: domain.ConnectionConfig{
				Kind: domain.KindSrt,
				Srt:  &domain.SrtConfig{Host: "srt.example.com", Port: 9000},
			},
			wantStates: []domain.ConnectionState{
				domain.StateInitialized, domain.StateConnected, domain.StateSetup, domain.StateRecord,
			},
			wantStatus: domain.StatusSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			e := NewEngine(fastConfig(), testPlan(), sink, nil)
			defer e.Release()

			h, err := e.CreateConnection(context.Background(), tt.cfg)
			require.NoError(t, err)
			assert.True(t, h.Valid())

			require.Eventually(t, func() bool {
				return len(sink.states(h)) == len(tt.wantStates)
			}, time.Second, 5*time.Millisecond)

			assert.Equal(t, tt.wantStates, sink.states(h))
			last, _ := sink.last(h)
			assert.Equal(t, tt.wantStatus, last.Status)
		})
	}
}

func TestEngine_CreateConnectionRejectsInvalidConfig(t *testing.T) {
	e := NewEngine(fastConfig(), testPlan(), &recordingSink{}, nil)
	defer e.Release()

	h, err := e.CreateConnection(context.Background(), domain.ConnectionConfig{Kind: domain.KindSrt})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Equal(t, domain.InvalidHandle, h)
}

func TestEngine_HandlesAreUnique(t *testing.T) {
	e := NewEngine(fastConfig(), testPlan(), &recordingSink{}, nil)
	defer e.Release()

	seen := map[domain.ConnectionHandle]bool{}
	for i := 0; i < 5; i++ {
		h, err := e.CreateConnection(context.Background(), rtmp("rtmp://a.example.com/app/key"))
		require.NoError(t, err)
		assert.False(t, seen[h])
		seen[h] = true
	}
}

func TestEngine_ReleaseConnectionReportsDisconnected(t *testing.T) {
	sink := &recordingSink{}
	cfg := fastConfig()
	cfg.ConnectDelay = time.Hour
	e := NewEngine(cfg, testPlan(), sink, nil)
	defer e.Release()

	h, err := e.CreateConnection(context.Background(), rtmp("rtmp://a.example.com/app/key"))
	require.NoError(t, err)
	e.ReleaseConnection(h)
	e.ReleaseConnection(h)

	require.Eventually(t, func() bool {
		return len(sink.states(h)) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.ConnectionState{domain.StateInitialized, domain.StateDisconnected}, sink.states(h))

	_, err = e.PollStatistics(h)
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestEngine_PollStatisticsAccumulatesWhileRecording(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(fastConfig(), testPlan(), sink, nil)
	defer e.Release()

	start := time.Now()
	e.mu.Lock()
	e.now = func() time.Time { return start }
	e.mu.Unlock()

	h, err := e.CreateConnection(context.Background(), rtmp("rtmp://a.example.com/app/key"))
	require.NoError(t, err)

	counters, err := e.PollStatistics(h)
	require.NoError(t, err)
	assert.Zero(t, counters.BytesSent)

	require.Eventually(t, func() bool {
		states := sink.states(h)
		return len(states) > 0 && states[len(states)-1] == domain.StateRecord
	}, time.Second, 5*time.Millisecond)

	e.mu.Lock()
	e.now = func() time.Time { return start.Add(2 * time.Second) }
	e.cfg.LossPerSecond = 3
	e.mu.Unlock()

	counters, err = e.PollStatistics(h)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), counters.BytesSent)
	assert.Equal(t, uint64(6), counters.PacketsLost)
}

func TestEngine_Flip(t *testing.T) {
	e := NewEngine(fastConfig(), testPlan(), &recordingSink{}, nil)
	defer e.Release()

	e.ToggleTorch()
	e.ZoomTo(3)
	require.NoError(t, e.Flip(context.Background(), "1"))
	assert.Equal(t, "1", e.ActiveCameraID())
	assert.False(t, e.IsTorchOn())
	assert.Equal(t, 1.0, e.Zoom())

	assert.ErrorIs(t, e.Flip(context.Background(), "9"), ErrUnknownCamera)
}

func TestEngine_FlipHonoursContext(t *testing.T) {
	cfg := fastConfig()
	cfg.FlipDelay = time.Hour
	e := NewEngine(cfg, testPlan(), &recordingSink{}, nil)
	defer e.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Flip(ctx, "1"), context.DeadlineExceeded)
	assert.Equal(t, "0", e.ActiveCameraID())
}

func TestEngine_CaptureAndRecordNotifications(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(fastConfig(), testPlan(), sink, nil)
	defer e.Release()

	require.NoError(t, e.StartVideoCapture())
	require.NoError(t, e.StartAudioCapture())
	require.NoError(t, e.StartRecord("/tmp/a.mp4"))
	assert.ErrorIs(t, e.StartRecord("/tmp/b.mp4"), ErrAlreadyRecording)
	require.NoError(t, e.SplitRecord("/tmp/b.mp4"))
	e.StopRecord()
	require.NoError(t, e.TakeSnapshot("/tmp/c.jpg"))
	e.StopAudioCapture()
	e.StopVideoCapture()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.video) == 2 && len(sink.audio) == 2 && len(sink.records) == 4 && len(sink.snapshots) == 1
	}, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []domain.CaptureState{domain.CaptureStarted, domain.CaptureStopped}, sink.video)
	assert.Equal(t, []domain.RecordNotification{
		{State: domain.RecordStarted, URL: "/tmp/a.mp4"},
		{State: domain.RecordStopped, URL: "/tmp/a.mp4"},
		{State: domain.RecordStarted, URL: "/tmp/b.mp4"},
		{State: domain.RecordStopped, URL: "/tmp/b.mp4"},
	}, sink.records)
	assert.Equal(t, domain.RecordStopped, sink.snapshots[0].State)
}

func TestEngine_SplitWithoutRecording(t *testing.T) {
	e := NewEngine(fastConfig(), testPlan(), &recordingSink{}, nil)
	defer e.Release()
	assert.ErrorIs(t, e.SplitRecord("/tmp/x.mp4"), ErrNotRecording)
}

func TestEngine_ReleasedEngineRefusesWork(t *testing.T) {
	e := NewEngine(fastConfig(), testPlan(), &recordingSink{}, nil)
	e.Release()
	e.Release()

	_, err := e.CreateConnection(context.Background(), rtmp("rtmp://a.example.com/app/key"))
	assert.ErrorIs(t, err, ErrReleased)
	assert.ErrorIs(t, e.StartVideoCapture(), ErrReleased)
	assert.ErrorIs(t, e.StartRecord("/tmp/a.mp4"), ErrReleased)
}

func TestFactory_Build(t *testing.T) {
	f := NewFactory(fastConfig(), zap.NewNop().Sugar())
	engine, err := f.Build(context.Background(), testPlan(), &recordingSink{})
	require.NoError(t, err)
	defer engine.Release()
	assert.Equal(t, "0", engine.ActiveCameraID())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Build(ctx, testPlan(), &recordingSink{})
	assert.ErrorIs(t, err, context.Canceled)
}
