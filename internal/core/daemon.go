package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/config"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/control"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/emitter"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/worker"
)

// Daemon is the long-running pose analysis service: python workers, MQTT
// result publishing, the control plane and the health endpoints.
type Daemon struct {
	cfg *config.Config
	svc *Service

	engine         *worker.PoseEngine
	extractor      *worker.Extractor
	emitter        *emitter.MQTTEmitter // nil when mqtt.broker is empty
	controlHandler *control.Handler
	healthServer   *http.Server
}

// NewDaemon creates a daemon from a configuration file
func NewDaemon(configPath string) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("configuration loaded",
		"instance_id", cfg.InstanceID,
		"model", cfg.Engine.ModelPath,
		"device", cfg.Engine.Device,
		"mqtt_enabled", cfg.MQTT.Broker != "",
		"coach_enabled", cfg.Coach.Enabled,
	)

	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	extractor, err := NewExtractor(cfg)
	if err != nil {
		return nil, err
	}
	narrator, err := NewNarrator(cfg)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:       cfg,
		engine:    engine,
		extractor: extractor,
	}

	opts := Options{
		Config:   cfg,
		Provider: extractor,
		Engine:   engine,
		Narrator: narrator,
		Workers:  []Worker{engine.Process(), extractor.Process()},
	}
	if cfg.MQTT.Broker != "" {
		d.emitter = emitter.NewMQTTEmitter(cfg)
		opts.Publisher = d.emitter
	}

	d.svc, err = NewService(opts)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Service returns the analysis service
func (d *Daemon) Service() *Service {
	return d.svc
}

// Config returns the validated configuration
func (d *Daemon) Config() *config.Config {
	return d.cfg
}

// StartHealthServer starts the HTTP health endpoints (non-blocking). A zero
// port uses health_port from the configuration.
func (d *Daemon) StartHealthServer(port int) error {
	if port == 0 {
		port = d.cfg.HealthPort
	}
	server, err := d.svc.StartHealthServer(":" + strconv.Itoa(port))
	if err != nil {
		return err
	}
	d.healthServer = server
	return nil
}

// Run starts the daemon and blocks until context is cancelled
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("pose analyzer starting", "instance_id", d.cfg.InstanceID)

	if d.emitter != nil {
		if err := d.emitter.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect mqtt: %w", err)
		}
	}

	if err := d.svc.Start(ctx); err != nil {
		return err
	}

	if d.emitter != nil {
		d.controlHandler = control.NewHandler(d.cfg, d.emitter.Client, d.emitter, control.CommandCallbacks{
			OnAnalyzeImage: d.analyzeImage,
			OnAnalyzeVideo: d.analyzeVideo,
			OnGetStatus:    d.svc.GetStatus,
		})
		if err := d.controlHandler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
	}

	<-ctx.Done()

	slog.Info("pose analyzer run loop exiting")
	return nil
}

func (d *Daemon) analyzeImage(ctx context.Context, path string) (types.Result, error) {
	res, err := d.svc.AnalyzeImageFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (d *Daemon) analyzeVideo(ctx context.Context, path string) (types.Result, error) {
	res, err := d.svc.AnalyzeVideoFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Shutdown performs graceful shutdown of all components
func (d *Daemon) Shutdown(ctx context.Context) error {
	slog.Info("shutting down pose analyzer")

	// 1. Stop accepting commands
	if d.controlHandler != nil {
		if err := d.controlHandler.Stop(); err != nil {
			slog.Error("failed to stop control handler", "error", err)
		}
	}

	// 2. Stop schedule, watchdog and workers
	if err := d.svc.Stop(); err != nil {
		slog.Error("failed to stop service", "error", err)
	}

	// 3. Disconnect MQTT
	if d.emitter != nil {
		if err := d.emitter.Disconnect(); err != nil {
			slog.Error("failed to disconnect mqtt", "error", err)
		}
	}

	// 4. Health server last so readiness reports the shutdown
	if d.healthServer != nil {
		if err := d.healthServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop health server: %w", err)
		}
	}

	slog.Info("pose analyzer shutdown complete")
	return nil
}

// ShutdownTimeout returns the configured graceful shutdown timeout
func (d *Daemon) ShutdownTimeout() time.Duration {
	if timeout := d.cfg.ShutdownTimeout(); timeout > 0 {
		return timeout
	}
	return 5 * time.Second
}
