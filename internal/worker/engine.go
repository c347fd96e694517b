package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

// PoseEngineConfig contains configuration for the pose classifier worker
type PoseEngineConfig struct {
	WorkerID    string
	Command     string // wrapper script that activates the venv and runs the classifier
	ModelPath   string
	Device      string // cpu, cuda
	CallTimeout time.Duration
	Env         []string
}

// PoseEngine runs the pose classification model in a Python worker.
// Calls are serialized by the underlying Process, so it is safe for concurrent use.
type PoseEngine struct {
	proc      *Process
	modelPath string
	device    string
}

// NewPoseEngine creates a pose classifier worker
func NewPoseEngine(cfg PoseEngineConfig) (*PoseEngine, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model_path is required")
	}
	if cfg.Device == "" {
		cfg.Device = "cpu"
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "pose-engine"
	}

	proc, err := NewProcess(ProcessConfig{
		WorkerID:    cfg.WorkerID,
		Command:     cfg.Command,
		Args:        []string{"--model", cfg.ModelPath, "--device", cfg.Device},
		Env:         cfg.Env,
		CallTimeout: cfg.CallTimeout,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("pose engine worker created",
		"worker_id", cfg.WorkerID,
		"model", cfg.ModelPath,
		"device", cfg.Device,
	)

	return &PoseEngine{proc: proc, modelPath: cfg.ModelPath, device: cfg.Device}, nil
}

// Process exposes the underlying worker process for lifecycle and health
func (e *PoseEngine) Process() *Process {
	return e.proc
}

// Start starts the worker process
func (e *PoseEngine) Start(ctx context.Context) error {
	return e.proc.Start(ctx)
}

// Stop stops the worker process
func (e *PoseEngine) Stop() error {
	return e.proc.Stop()
}

// Infer runs the classifier over a keypoint sequence
func (e *PoseEngine) Infer(ctx context.Context, seq types.KeypointSequence) (*types.InferenceOutput, error) {
	request := map[string]interface{}{
		"command":   "infer",
		"keypoints": seq.Tensor(),
	}

	var out types.InferenceOutput
	if err := e.proc.Call(ctx, request, &out); err != nil {
		return nil, err
	}

	slog.Debug("pose inference complete",
		"worker_id", e.proc.ID(),
		"frames", len(seq),
		"attention_shape", out.Attention.Shape,
	)

	return &out, nil
}
