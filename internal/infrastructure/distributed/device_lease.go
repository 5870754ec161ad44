package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"

	"go.uber.org/zap"
)

// DeviceLease is the exclusive claim an instance must hold to drive the capture
// device. pkg/distributed.Lease satisfies it.
type DeviceLease interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	Held() bool
	OnLost(fn func())
}

// LeasedSession gates Start on a device lease shared between instances. Stop and
// Close hand the lease back; losing it stops the session.
type LeasedSession struct {
	ports.SessionService

	lease          DeviceLease
	releaseTimeout time.Duration
	logger         *zap.SugaredLogger
}

func NewLeasedSession(session ports.SessionService, lease DeviceLease, logger *zap.SugaredLogger) *LeasedSession {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &LeasedSession{
		SessionService: session,
		lease:          lease,
		releaseTimeout: 2 * time.Second,
		logger:         logger,
	}
	lease.OnLost(s.onLost)
	return s
}

func (s *LeasedSession) Start(ctx context.Context) error {
	acquired, err := s.lease.TryAcquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire device lease: %w", err)
	}
	if !acquired {
		return domain.ErrDeviceBusy
	}

	if err := s.SessionService.Start(ctx); err != nil {
		s.release()
		return err
	}
	return nil
}

func (s *LeasedSession) Stop(ctx context.Context) error {
	err := s.SessionService.Stop(ctx)
	s.release()
	return err
}

func (s *LeasedSession) Close() {
	s.SessionService.Close()
	s.release()
}

func (s *LeasedSession) release() {
	if !s.lease.Held() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.releaseTimeout)
	defer cancel()
	if err := s.lease.Release(ctx); err != nil {
		s.logger.Warnw("failed to release device lease", "session_id", s.ID(), "error", err)
	}
}

func (s *LeasedSession) onLost() {
	s.logger.Warnw("device lease lost, stopping session", "session_id", s.ID())
	ctx, cancel := context.WithTimeout(context.Background(), s.releaseTimeout)
	defer cancel()
	if err := s.SessionService.Stop(ctx); err != nil && !errors.Is(err, domain.ErrSessionClosed) {
		s.logger.Errorw("failed to stop session after losing device lease", "session_id", s.ID(), "error", err)
	}
}

var _ ports.SessionService = (*LeasedSession)(nil)
