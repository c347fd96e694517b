// Package analysis drives the image and video pose analysis flows.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/feedback"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/metrics"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/motion"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/salience"
	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

const (
	msgNoPoseImage = "No pose detected in image"
	msgNoPoseVideo = "No poses detected in video"
)

// InferenceEngine runs the pose classification model over a keypoint sequence.
// Implementations must be safe for concurrent use.
type InferenceEngine interface {
	Infer(ctx context.Context, seq types.KeypointSequence) (*types.InferenceOutput, error)
}

// Config contains optional analyzer settings
type Config struct {
	// Rules is the feedback rule table (default: feedback.DefaultRules)
	Rules *feedback.RuleSet
	// Now stamps results (default: time.Now)
	Now func() time.Time
}

// Analyzer runs both analysis flows against one inference engine.
// It holds no per-request state and may be shared across goroutines.
type Analyzer struct {
	engine InferenceEngine
	rules  feedback.RuleSet
	now    func() time.Time
}

// NewAnalyzer creates an analyzer bound to an inference engine
func NewAnalyzer(engine InferenceEngine, cfg Config) (*Analyzer, error) {
	if engine == nil {
		return nil, fmt.Errorf("inference engine is required")
	}

	a := &Analyzer{
		engine: engine,
		rules:  feedback.DefaultRules(),
		now:    time.Now,
	}
	if cfg.Rules != nil {
		a.rules = *cfg.Rules
	}
	if cfg.Now != nil {
		a.now = cfg.Now
	}
	return a, nil
}

// AnalyzeImage classifies and scores a single frame. A nil frame yields a
// not-detected result without calling the engine. Failures are reported in
// the result, never as a panic or a returned error.
func (a *Analyzer) AnalyzeImage(ctx context.Context, frame types.KeypointFrame) (res *types.ImageAnalysisResult) {
	ts := a.now()

	if len(frame) == 0 {
		return &types.ImageAnalysisResult{
			Outcome:   types.OutcomeNotDetected,
			Message:   msgNoPoseImage,
			Timestamp: ts,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("image analysis fault", "panic", r)
			res = failImage(&types.ImageAnalysisResult{Detected: true, Timestamp: ts}, fmt.Errorf("%w: %v", types.ErrUnexpectedFault, r))
		}
	}()

	res = &types.ImageAnalysisResult{
		Detected:  true,
		Keypoints: frame.Clone(),
		Timestamp: ts,
	}

	if err := frame.Validate(); err != nil {
		return failImage(res, err)
	}

	out, err := a.infer(ctx, types.KeypointSequence{frame})
	if err != nil {
		return failImage(res, err)
	}

	topProbs := Softmax(out.TopDownLogits)
	topIdx := Argmax(topProbs)
	bottomProbs := Softmax(out.BottomUpLogits)
	bottomIdx := Argmax(bottomProbs)

	topClass, _ := types.PoseClassAt(topIdx)
	bottomClass, _ := types.PoseClassAt(bottomIdx)

	probMap := make(map[string]float64, types.NumPoseClasses)
	for i, p := range topProbs {
		c, _ := types.PoseClassAt(i)
		probMap[string(c)] = p
	}

	res.TopDown = &types.ClassificationResult{
		Class:         topClass,
		Confidence:    topProbs[topIdx],
		Probabilities: probMap,
	}
	res.BottomUp = &types.ClassificationResult{
		Class:      bottomClass,
		Confidence: bottomProbs[bottomIdx],
	}
	quality := out.QualityRaw
	res.QualityScore = &quality

	poseMetrics, err := metrics.Calculate(frame)
	if err != nil {
		return failImage(res, err)
	}

	joints, err := salience.Rank(out.Attention)
	if err != nil {
		slog.Warn("attention ranking skipped", "error", err, "shape", out.Attention.Shape)
		joints = []string{}
	}

	res.Analysis = &types.PoseAnalysis{
		DetectedPose: topClass,
		PoseMetrics:  poseMetrics,
		QualityAssessment: types.QualityAssessment{
			Score:  quality,
			Rating: feedback.Rating(quality),
		},
		ImportantJoints: joints,
		Feedback:        a.rules.Synthesize(topClass, poseMetrics),
	}
	res.Outcome = types.OutcomeDetected

	return res
}

// AnalyzeVideo classifies a whole sequence and measures its motion. Motion
// analysis does not depend on the engine, so it is reported even when
// inference fails.
func (a *Analyzer) AnalyzeVideo(ctx context.Context, seq types.KeypointSequence) (res *types.VideoAnalysisResult) {
	ts := a.now()

	if len(seq) == 0 {
		return &types.VideoAnalysisResult{
			Outcome:   types.OutcomeNotDetected,
			Message:   msgNoPoseVideo,
			Timestamp: ts,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("video analysis fault", "panic", r)
			res = failVideo(&types.VideoAnalysisResult{Detected: true, SequenceLength: len(seq), Timestamp: ts}, fmt.Errorf("%w: %v", types.ErrUnexpectedFault, r))
		}
	}()

	res = &types.VideoAnalysisResult{
		Detected:       true,
		SequenceLength: len(seq),
		Timestamp:      ts,
	}

	if err := seq.Validate(); err != nil {
		return failVideo(res, err)
	}

	motionMetrics, err := motion.Analyze(seq)
	if err != nil && !errors.Is(err, motion.ErrInsufficientFrames) {
		return failVideo(res, err)
	}
	res.MotionAnalysis = &motionMetrics

	out, err := a.infer(ctx, seq)
	if err != nil {
		return failVideo(res, err)
	}

	topClass, _ := types.PoseClassAt(Argmax(Softmax(out.TopDownLogits)))
	bottomClass, _ := types.PoseClassAt(Argmax(Softmax(out.BottomUpLogits)))

	res.OverallPrediction = &types.OverallPrediction{
		TopDownClass:  topClass,
		BottomUpClass: bottomClass,
		QualityScore:  out.QualityRaw,
	}
	fb := feedback.SynthesizeVideo(out.QualityRaw, motionMetrics)
	res.Feedback = &fb
	res.Outcome = types.OutcomeDetected

	return res
}

func (a *Analyzer) infer(ctx context.Context, seq types.KeypointSequence) (*types.InferenceOutput, error) {
	out, err := a.engine.Infer(ctx, seq)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: engine returned no output", types.ErrInvalidInference)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func failImage(res *types.ImageAnalysisResult, err error) *types.ImageAnalysisResult {
	res.Outcome = types.OutcomeFailed
	res.Err = err
	res.Error = err.Error()
	return res
}

func failVideo(res *types.VideoAnalysisResult, err error) *types.VideoAnalysisResult {
	res.Outcome = types.OutcomeFailed
	res.Err = err
	res.Error = err.Error()
	return res
}
