package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"castmux/internal/core/ports"
	"castmux/internal/core/services"
	httphandlers "castmux/internal/handlers/http"
	"castmux/internal/infrastructure/camera"
	"castmux/internal/infrastructure/distributed"
	"castmux/internal/infrastructure/engine/loopback"
	"castmux/internal/infrastructure/events"
	"castmux/internal/infrastructure/middleware"
	"castmux/internal/infrastructure/monitoring"
	"castmux/internal/infrastructure/repositories"
	"castmux/pkg/config"
	leasing "castmux/pkg/distributed"
	"castmux/pkg/logger"
	"castmux/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration")
	issueToken := flag.String("issue-token", "", "print a bearer token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		token, err := middleware.NewTokenValidator(cfg.Auth.JWTSecret).GenerateToken(*issueToken, *tokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if err := run(cfg, log, logger.NewContextLogger(zapLogger)); err != nil {
		log.Fatalw("castmuxd failed", "error", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger, contextLogger *logger.ContextLogger) error {
	startTime := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	defer repoFactory.Close()
	snapshots := repoFactory.CreateSnapshotRepository()

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	publisher := events.NewPublisher(cfg.Session.EventBuffer, log)
	publisher.OnDrop(collector.RecordEventDropped)
	defer publisher.Close()

	hubCfg := events.DefaultHubConfig()
	hubCfg.AllowedOrigins = cfg.Auth.AllowedOrigins
	if cfg.RateLimiting.Enabled {
		hubCfg.ConnectionsPerMinute = cfg.RateLimiting.WebSocket.ConnectionsPerMinute
		hubCfg.MaxClients = cfg.RateLimiting.WebSocket.MaxConcurrent
		hubCfg.MaxMessageSizeBytes = cfg.RateLimiting.WebSocket.MaxMessageSizeBytes
	}
	hub := events.NewHub(hubCfg, log)
	defer hub.Close()

	hubEvents, err := publisher.Subscribe("websocket")
	if err != nil {
		return err
	}
	go hub.Run(ctx, hubEvents)

	if client := repoFactory.RedisClient(); client != nil {
		bus := distributed.NewEventBus(client, cfg.Redis.EventChannel, log)
		outbound, err := publisher.Subscribe("redis")
		if err != nil {
			return err
		}
		go bus.Forward(ctx, outbound)
		go func() {
			err := bus.Subscribe(ctx, func(env *distributed.Envelope) error {
				hub.Broadcast(env.Event())
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warnw("event bus subscription ended", "error", err)
			}
		}()
		log.Infow("cross-instance events enabled", "channel", cfg.Redis.EventChannel, "instance_id", bus.InstanceID())
	}

	cameras, err := camera.NewStaticProvider(cfg.Cameras)
	if err != nil {
		return fmt.Errorf("load cameras: %w", err)
	}
	engines := loopback.NewFactory(loopback.Config{
		ConnectDelay:  cfg.Engine.ConnectDelay,
		SetupDelay:    cfg.Engine.SetupDelay,
		RecordDelay:   cfg.Engine.RecordDelay,
		FlipDelay:     cfg.Engine.FlipDelay,
		BitrateBps:    cfg.Engine.BitrateBps,
		LossPerSecond: cfg.Engine.LossPerSecond,
	}, log)

	var session ports.SessionService = services.NewSession(sessionConfig(cfg), engines, cameras, publisher, snapshots, collector, log)
	if client := repoFactory.RedisClient(); client != nil && cfg.Redis.DeviceLease.Enabled {
		lease := leasing.NewLease(client, cfg.Redis.DeviceLease.Key, cfg.Redis.DeviceLease.TTL)
		session = distributed.NewLeasedSession(session, lease, log)
		log.Infow("device lease enabled", "key", lease.Key(), "ttl", cfg.Redis.DeviceLease.TTL)
	}
	defer session.Close()

	health := monitoring.NewHealthChecker()
	health.AddSessionCheck(session, 2*time.Second)
	health.AddCameraCheck(cameras, 2*time.Second)
	if client := repoFactory.RedisClient(); client != nil {
		health.AddRedisCheck(client, 2*time.Second)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.RequestLoggingMiddleware(contextLogger))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"timestamp":  time.Now(),
			"uptime":     time.Since(startTime).String(),
			"session_id": session.ID(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		status := health.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status == monitoring.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	api := router.Group("/api/v1")
	if cfg.Auth.Enabled {
		validator := middleware.NewTokenValidator(cfg.Auth.JWTSecret)
		api.Use(middleware.AuthMiddleware(validator))
		router.GET("/ws", middleware.AuthMiddleware(validator), gin.WrapH(hub))
	} else {
		router.GET("/ws", gin.WrapH(hub))
	}
	httphandlers.NewSessionHandler(session).SetupRoutes(api)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting castmuxd", "address", cfg.Server.Address, "session_id", session.ID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	// Stop streaming before the event plumbing and storage go away.
	if err := session.Stop(shutdownCtx); err != nil {
		log.Warnw("failed to stop session", "error", err)
	}
	log.Info("castmuxd stopped")
	return nil
}
