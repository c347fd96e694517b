package worker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nfnt/resize"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

const (
	defaultSequenceTimeout = 2 * time.Minute
	jpegQuality            = 90
)

// ExtractorConfig contains configuration for the keypoint extractor worker
type ExtractorConfig struct {
	WorkerID               string
	Command                string
	MinDetectionConfidence float64
	MinTrackingConfidence  float64
	MaxImageDim            int // images larger than this are downscaled before upload (0 disables)
	CallTimeout            time.Duration
	SequenceTimeout        time.Duration
	Env                    []string
}

// Extractor pulls pose landmarks out of images and videos through a Python worker
type Extractor struct {
	proc            *Process
	maxImageDim     int
	sequenceTimeout time.Duration
}

type frameResponse struct {
	Detected  bool        `msgpack:"detected"`
	Landmarks [][]float64 `msgpack:"landmarks"`
}

type sequenceResponse struct {
	Frames      [][][]float64 `msgpack:"frames"`
	TotalFrames int           `msgpack:"total_frames"`
}

// NewExtractor creates a keypoint extractor worker
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	if cfg.WorkerID == "" {
		cfg.WorkerID = "keypoint-extractor"
	}
	if cfg.MinDetectionConfidence <= 0 {
		cfg.MinDetectionConfidence = 0.5
	}
	if cfg.MinTrackingConfidence <= 0 {
		cfg.MinTrackingConfidence = 0.5
	}
	if cfg.SequenceTimeout <= 0 {
		cfg.SequenceTimeout = defaultSequenceTimeout
	}

	proc, err := NewProcess(ProcessConfig{
		WorkerID: cfg.WorkerID,
		Command:  cfg.Command,
		Args: []string{
			"--min-detection-confidence", fmt.Sprintf("%.2f", cfg.MinDetectionConfidence),
			"--min-tracking-confidence", fmt.Sprintf("%.2f", cfg.MinTrackingConfidence),
		},
		Env:         cfg.Env,
		CallTimeout: cfg.CallTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Extractor{
		proc:            proc,
		maxImageDim:     cfg.MaxImageDim,
		sequenceTimeout: cfg.SequenceTimeout,
	}, nil
}

// Process exposes the underlying worker process for lifecycle and health
func (x *Extractor) Process() *Process {
	return x.proc
}

// Start starts the worker process
func (x *Extractor) Start(ctx context.Context) error {
	return x.proc.Start(ctx)
}

// Stop stops the worker process
func (x *Extractor) Stop() error {
	return x.proc.Stop()
}

// ExtractFrame returns the landmarks of the pose in an image, or nil when
// no pose is found.
func (x *Extractor) ExtractFrame(ctx context.Context, imagePath string) (types.KeypointFrame, error) {
	data, width, height, err := x.loadImage(imagePath)
	if err != nil {
		return nil, err
	}

	request := map[string]interface{}{
		"command": "extract_frame",
		"image":   data,
		"width":   width,
		"height":  height,
	}

	var resp frameResponse
	if err := x.proc.Call(ctx, request, &resp); err != nil {
		return nil, err
	}
	if !resp.Detected {
		return nil, nil
	}

	return types.FrameFromRows(resp.Landmarks)
}

// ExtractSequence returns the landmarks of every video frame with a detected
// pose. Frames without a detection are omitted.
func (x *Extractor) ExtractSequence(ctx context.Context, videoPath string) (types.KeypointSequence, error) {
	abs, err := filepath.Abs(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve video path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.sequenceTimeout)
		defer cancel()
	}

	request := map[string]interface{}{
		"command":    "extract_sequence",
		"video_path": abs,
	}

	var resp sequenceResponse
	if err := x.proc.Call(ctx, request, &resp); err != nil {
		return nil, err
	}

	seq := make(types.KeypointSequence, 0, len(resp.Frames))
	for i, rows := range resp.Frames {
		frame, err := types.FrameFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if frame == nil {
			continue
		}
		seq = append(seq, frame)
	}

	slog.Debug("video keypoints extracted",
		"worker_id", x.proc.ID(),
		"video", abs,
		"total_frames", resp.TotalFrames,
		"detected_frames", len(seq),
	)

	return seq, nil
}

// loadImage decodes an image, downscales it to fit maxImageDim and
// re-encodes it as JPEG for the worker.
func (x *Extractor) loadImage(path string) ([]byte, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: failed to decode image: %v", types.ErrInvalidInput, err)
	}

	img = fitImage(img, x.maxImageDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode image: %w", err)
	}

	b := img.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}

// fitImage downscales img so neither side exceeds maxDim, keeping aspect ratio.
// Landmarks are normalized, so scaling does not change them.
func fitImage(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return resize.Thumbnail(uint(maxDim), uint(maxDim), img, resize.Lanczos3)
}
