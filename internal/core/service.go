package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/analysis"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/coach"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/config"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

const defaultWatchdogInterval = 30 * time.Second

// Options contains the collaborators of a Service
type Options struct {
	Config   *config.Config
	Provider KeypointProvider
	Engine   analysis.InferenceEngine

	// Optional
	Publisher        Publisher
	Narrator         coach.Narrator
	Workers          []Worker
	WatchdogInterval time.Duration
	Now              func() time.Time
}

// Service runs analyses on media files and reports its own health.
// Analysis methods are safe for concurrent use.
type Service struct {
	cfg       *config.Config
	provider  KeypointProvider
	analyzer  *analysis.Analyzer
	publisher Publisher
	narrator  coach.Narrator
	workers   []Worker
	watchdog  time.Duration

	cron *cron.Cron
	wg   sync.WaitGroup

	mu        sync.RWMutex
	started   time.Time
	isRunning bool
	starting  bool
	cancel    context.CancelFunc
	analyses  map[string]uint64 // count per kind/outcome
}

// NewService creates a service from its collaborators
func NewService(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("keypoint provider is required")
	}

	analyzer, err := analysis.NewAnalyzer(opts.Engine, analysis.Config{Now: opts.Now})
	if err != nil {
		return nil, err
	}

	watchdog := opts.WatchdogInterval
	if watchdog <= 0 {
		watchdog = defaultWatchdogInterval
	}

	return &Service{
		cfg:       opts.Config,
		provider:  opts.Provider,
		analyzer:  analyzer,
		publisher: opts.Publisher,
		narrator:  opts.Narrator,
		workers:   opts.Workers,
		watchdog:  watchdog,
		started:   time.Now(),
		analyses:  make(map[string]uint64),
	}, nil
}

// AnalyzeImageFile extracts keypoints from an image and analyzes the pose.
// Extraction errors are returned; analysis failures are reported in the result.
func (s *Service) AnalyzeImageFile(ctx context.Context, path string) (*types.ImageAnalysisResult, error) {
	frame, err := s.provider.ExtractFrame(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keypoints from %s: %w", path, err)
	}

	res := s.analyzer.AnalyzeImage(ctx, frame)
	res.RequestID = uuid.NewString()
	res.Source = path

	if res.Outcome == types.OutcomeDetected {
		res.CoachNote = s.narrate(ctx, res)
	}
	s.finish(res, string(res.Outcome), res.Err)
	return res, nil
}

// AnalyzeVideoFile extracts the keypoint sequence of a video and analyzes the movement.
// Extraction errors are returned; analysis failures are reported in the result.
func (s *Service) AnalyzeVideoFile(ctx context.Context, path string) (*types.VideoAnalysisResult, error) {
	seq, err := s.provider.ExtractSequence(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keypoints from %s: %w", path, err)
	}

	res := s.analyzer.AnalyzeVideo(ctx, seq)
	res.RequestID = uuid.NewString()
	res.Source = path

	if res.Outcome == types.OutcomeDetected {
		res.CoachNote = s.narrate(ctx, res)
	}
	s.finish(res, string(res.Outcome), res.Err)
	return res, nil
}

func (s *Service) narrate(ctx context.Context, result types.Result) string {
	if s.narrator == nil {
		return ""
	}
	note, err := s.narrator.Narrate(ctx, result)
	if err != nil {
		if !errors.Is(err, coach.ErrNothingToNarrate) {
			slog.Warn("coach note failed", "kind", result.Kind(), "error", err)
		}
		return ""
	}
	return note
}

// finish counts and publishes a result
func (s *Service) finish(result types.Result, outcome string, cause error) {
	s.mu.Lock()
	s.analyses[result.Kind()+"/"+outcome]++
	s.mu.Unlock()

	if cause != nil {
		slog.Warn("analysis failed", "kind", result.Kind(), "error", cause)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(result); err != nil {
		slog.Warn("failed to publish result", "kind", result.Kind(), "error", err)
	}
}

// Start starts the workers, the health schedule and the worker watchdog
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning || s.starting {
		s.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	s.starting = true
	s.mu.Unlock()

	if err := s.startComponents(ctx); err != nil {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.starting = false
	s.isRunning = true
	s.started = time.Now()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchWorkers(ctx)
	}()

	slog.Info("pose analysis service running",
		"instance_id", s.cfg.InstanceID,
		"workers", len(s.workers),
	)
	return nil
}

// startComponents starts the workers and the health schedule, stopping
// whatever already started when one of them fails
func (s *Service) startComponents(ctx context.Context) error {
	for i, w := range s.workers {
		if err := w.Start(ctx); err != nil {
			for _, started := range s.workers[:i] {
				started.Stop()
			}
			return fmt.Errorf("failed to start worker %s: %w", w.ID(), err)
		}
	}

	if s.publisher != nil {
		if err := s.StartHealthSchedule(s.cfg.HealthSchedule); err != nil {
			for _, w := range s.workers {
				w.Stop()
			}
			return err
		}
	}
	return nil
}

// Stop stops the health schedule, the watchdog and the workers
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	cancel()
	s.wg.Wait()

	var firstErr error
	for _, w := range s.workers {
		if err := w.Stop(); err != nil {
			slog.Error("failed to stop worker", "worker_id", w.ID(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// StartHealthSchedule publishes health snapshots on a cron schedule
func (s *Service) StartHealthSchedule(schedule string) error {
	if s.publisher == nil {
		return fmt.Errorf("health schedule requires a publisher")
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, s.publishHealth); err != nil {
		return fmt.Errorf("invalid health schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c

	slog.Info("health schedule started", "schedule", schedule)
	return nil
}

// watchWorkers restarts workers that died or were killed after a timeout
func (s *Service) watchWorkers(ctx context.Context) {
	ticker := time.NewTicker(s.watchdog)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, w := range s.workers {
				if w.IsActive() {
					continue
				}

				slog.Warn("worker inactive, attempting restart", "worker_id", w.ID())

				if err := w.Restart(ctx); err != nil {
					slog.Error("failed to restart worker",
						"worker_id", w.ID(),
						"error", err,
						"action", "manual intervention required")
					continue
				}

				slog.Info("worker restarted successfully", "worker_id", w.ID())
			}
		}
	}
}

// GetStatus returns the current status of the service
func (s *Service) GetStatus() map[string]interface{} {
	health := s.HealthCheck()
	return map[string]interface{}{
		"instance_id": s.cfg.InstanceID,
		"uptime_s":    health.UptimeSeconds,
		"running":     health.Status != StatusUnhealthy,
		"health":      health,
	}
}
