package loopback

import (
	"context"

	"castmux/internal/core/domain"
	"castmux/internal/core/ports"

	"go.uber.org/zap"
)

type Factory struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func NewFactory(cfg Config, logger *zap.SugaredLogger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

func (f *Factory) Build(ctx context.Context, plan domain.SessionPlan, sink ports.NotificationSink) (ports.MediaEngine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.logger.Infow("building loopback engine",
		"camera_id", plan.ActiveCameraID,
		"cameras", len(plan.Cameras),
		"codec", plan.Video.Codec,
	)
	return NewEngine(f.cfg, plan, sink, f.logger), nil
}

var _ ports.EngineFactory = (*Factory)(nil)
