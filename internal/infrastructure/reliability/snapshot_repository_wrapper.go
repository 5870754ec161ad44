package reliability

import (
	"context"
	"errors"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"
	"castmux/pkg/circuitbreaker"
	"castmux/pkg/retry"

	"go.uber.org/zap"
)

// SnapshotRepositoryWrapper guards a remote snapshot store with retries and a circuit
// breaker so a flapping backend cannot stall statistics persistence.
type SnapshotRepositoryWrapper struct {
	repo    ports.SnapshotRepository
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	logger  *zap.SugaredLogger
}

func NewSnapshotRepositoryWrapper(
	repo ports.SnapshotRepository,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *SnapshotRepositoryWrapper {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	// An open circuit is not worth retrying against.
	retryConfig.NonRetryableErrors = append(retryConfig.NonRetryableErrors, circuitbreaker.ErrOpen)

	w := &SnapshotRepositoryWrapper{
		repo:    repo,
		breaker: circuitbreaker.New(cbConfig),
		retry:   retryConfig,
		logger:  logger,
	}
	w.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("snapshot store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})
	return w
}

func (w *SnapshotRepositoryWrapper) Save(ctx context.Context, snapshot domain.StatsSnapshot) error {
	return retry.Retry(ctx, w.retry, func() error {
		return w.breaker.Execute(ctx, func() error {
			return w.repo.Save(ctx, snapshot)
		})
	})
}

// Latest is not retried. A missing snapshot counts as a healthy answer.
func (w *SnapshotRepositoryWrapper) Latest(ctx context.Context, sessionID domain.SessionID) (*domain.StatsSnapshot, error) {
	var (
		snapshot *domain.StatsSnapshot
		notFound bool
	)
	err := w.breaker.Execute(ctx, func() error {
		var err error
		snapshot, err = w.repo.Latest(ctx, sessionID)
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			notFound = true
			return nil
		}
		return err
	})
	if notFound {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (w *SnapshotRepositoryWrapper) Delete(ctx context.Context, sessionID domain.SessionID) error {
	return retry.Retry(ctx, w.retry, func() error {
		return w.breaker.Execute(ctx, func() error {
			return w.repo.Delete(ctx, sessionID)
		})
	})
}

func (w *SnapshotRepositoryWrapper) BreakerStats() circuitbreaker.Stats {
	return w.breaker.Stats()
}

var _ ports.SnapshotRepository = (*SnapshotRepositoryWrapper)(nil)
