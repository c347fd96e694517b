package core

import (
	"fmt"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/coach"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/config"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/worker"
)

// NewEngine creates the pose classifier worker from configuration
func NewEngine(cfg *config.Config) (*worker.PoseEngine, error) {
	engine, err := worker.NewPoseEngine(worker.PoseEngineConfig{
		WorkerID:    "pose-engine",
		Command:     cfg.Engine.Command,
		ModelPath:   cfg.Engine.ModelPath,
		Device:      cfg.Engine.Device,
		CallTimeout: cfg.Engine.CallTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pose engine: %w", err)
	}
	return engine, nil
}

// NewExtractor creates the keypoint extractor worker from configuration
func NewExtractor(cfg *config.Config) (*worker.Extractor, error) {
	extractor, err := worker.NewExtractor(worker.ExtractorConfig{
		WorkerID:               "keypoint-extractor",
		Command:                cfg.Extractor.Command,
		MinDetectionConfidence: cfg.Extractor.MinDetectionConfidence,
		MinTrackingConfidence:  cfg.Extractor.MinTrackingConfidence,
		MaxImageDim:            cfg.Extractor.MaxImageDim,
		CallTimeout:            cfg.Extractor.CallTimeout(),
		SequenceTimeout:        cfg.Extractor.SequenceTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create keypoint extractor: %w", err)
	}
	return extractor, nil
}

// NewNarrator creates the coaching narrator, or returns nil when coaching is disabled
func NewNarrator(cfg *config.Config) (coach.Narrator, error) {
	if !cfg.Coach.Enabled {
		return nil, nil
	}
	narrator, err := coach.NewAnthropicNarrator(coach.AnthropicConfig{
		APIKey:    cfg.Coach.APIKey,
		Model:     cfg.Coach.Model,
		MaxTokens: cfg.Coach.MaxTokens,
		Timeout:   cfg.Coach.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create coach: %w", err)
	}
	return narrator, nil
}
