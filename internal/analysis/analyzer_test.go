package analysis

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"testing/quick"
	"time"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

type fakeEngine struct {
	out   *types.InferenceOutput
	err   error
	panic bool
	calls atomic.Int32
}

func (f *fakeEngine) Infer(ctx context.Context, seq types.KeypointSequence) (*types.InferenceOutput, error) {
	f.calls.Add(1)
	if f.panic {
		var m map[string]int
		m["boom"]++
	}
	return f.out, f.err
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAnalyzer(t *testing.T, engine InferenceEngine) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(engine, Config{Now: func() time.Time { return fixedTime }})
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}
	return a
}

// logitsFor puts a clear maximum on the given class index.
func logitsFor(idx int) []float64 {
	l := make([]float64, types.NumPoseClasses)
	l[idx] = 5
	return l
}

func shootingOutput() *types.InferenceOutput {
	att := make([]float64, types.NumLandmarks)
	att[types.LeftShoulder] = 0.9
	att[types.RightAnkle] = 0.8
	return &types.InferenceOutput{
		TopDownLogits:  logitsFor(0),
		BottomUpLogits: logitsFor(1),
		QualityRaw:     0.85,
		Attention:      types.AttentionMatrix{Shape: []int{types.NumLandmarks, 1}, Data: att},
	}
}

func scenarioFrame() types.KeypointFrame {
	f := make(types.KeypointFrame, types.NumLandmarks)
	f[types.LeftShoulder] = types.Keypoint{X: 0, Y: 0}
	f[types.RightShoulder] = types.Keypoint{X: 1, Y: 0}
	f[types.LeftHip] = types.Keypoint{X: 0, Y: 1}
	f[types.RightHip] = types.Keypoint{X: 1, Y: 1}
	f[types.LeftKnee] = types.Keypoint{X: 0, Y: 1.5}
	f[types.RightKnee] = types.Keypoint{X: 1, Y: 1.5}
	f[types.LeftAnkle] = types.Keypoint{X: 0, Y: 2}
	f[types.RightAnkle] = types.Keypoint{X: 1, Y: 2}
	return f
}

func TestNewAnalyzer_RequiresEngine(t *testing.T) {
	if _, err := NewAnalyzer(nil, Config{}); err == nil {
		t.Error("expected error for nil engine")
	}
}

func TestAnalyzeImage_NotDetected(t *testing.T) {
	engine := &fakeEngine{out: shootingOutput()}
	res := newTestAnalyzer(t, engine).AnalyzeImage(context.Background(), nil)

	if res.Outcome != types.OutcomeNotDetected || res.Detected {
		t.Errorf("expected not-detected outcome, got %s detected=%v", res.Outcome, res.Detected)
	}
	if res.Message != "No pose detected in image" {
		t.Errorf("unexpected message %q", res.Message)
	}
	if res.Keypoints != nil || res.TopDown != nil || res.BottomUp != nil || res.QualityScore != nil || res.Analysis != nil || res.Error != "" {
		t.Errorf("not-detected result must not populate other fields: %+v", res)
	}
	if engine.calls.Load() != 0 {
		t.Error("engine must not be called without a detection")
	}
	if !res.Timestamp.Equal(fixedTime) {
		t.Errorf("unexpected timestamp %v", res.Timestamp)
	}
}

func TestAnalyzeImage_Shooting(t *testing.T) {
	res := newTestAnalyzer(t, &fakeEngine{out: shootingOutput()}).AnalyzeImage(context.Background(), scenarioFrame())

	if res.Outcome != types.OutcomeDetected || !res.Detected {
		t.Fatalf("expected detected outcome, got %s (%s)", res.Outcome, res.Error)
	}
	if res.TopDown.Class != types.PoseShooting {
		t.Errorf("top-down class = %s, want shooting", res.TopDown.Class)
	}
	if res.BottomUp.Class != types.PoseDribbling {
		t.Errorf("bottom-up class = %s, want dribbling", res.BottomUp.Class)
	}
	if res.BottomUp.Probabilities != nil {
		t.Error("bottom-up head must not carry a probability map")
	}
	if len(res.TopDown.Probabilities) != types.NumPoseClasses {
		t.Errorf("expected %d probabilities, got %d", types.NumPoseClasses, len(res.TopDown.Probabilities))
	}
	if res.TopDown.Confidence != res.TopDown.Probabilities["shooting"] {
		t.Errorf("confidence %v does not match map entry %v", res.TopDown.Confidence, res.TopDown.Probabilities["shooting"])
	}

	an := res.Analysis
	if an.DetectedPose != types.PoseShooting {
		t.Errorf("detected pose = %s", an.DetectedPose)
	}
	if an.QualityAssessment.Rating != "Excellent" || an.QualityAssessment.Score != 0.85 {
		t.Errorf("unexpected quality assessment %+v", an.QualityAssessment)
	}
	if !reflect.DeepEqual(an.ImportantJoints[:2], []string{"left_shoulder", "right_ankle"}) {
		t.Errorf("unexpected important joints %v", an.ImportantJoints)
	}
	if !reflect.DeepEqual(an.Feedback.Strengths, []string{"Good foot positioning", "Excellent body symmetry"}) {
		t.Errorf("strengths = %v", an.Feedback.Strengths)
	}
	if !reflect.DeepEqual(an.Feedback.Improvements, []string{"Work on keeping torso straight"}) {
		t.Errorf("improvements = %v", an.Feedback.Improvements)
	}
}

func TestAnalyzeImage_InvalidFrame(t *testing.T) {
	engine := &fakeEngine{out: shootingOutput()}
	res := newTestAnalyzer(t, engine).AnalyzeImage(context.Background(), make(types.KeypointFrame, 17))

	if res.Outcome != types.OutcomeFailed || !errors.Is(res.Err, types.ErrInvalidInput) {
		t.Errorf("expected failed outcome with ErrInvalidInput, got %s %v", res.Outcome, res.Err)
	}
	if engine.calls.Load() != 0 {
		t.Error("engine must not be called for an invalid frame")
	}
}

func TestAnalyzeImage_EngineFailureKeepsKeypoints(t *testing.T) {
	engineErr := errors.New("worker not active")
	res := newTestAnalyzer(t, &fakeEngine{err: engineErr}).AnalyzeImage(context.Background(), scenarioFrame())

	if res.Outcome != types.OutcomeFailed || !errors.Is(res.Err, engineErr) {
		t.Fatalf("expected failed outcome wrapping engine error, got %s %v", res.Outcome, res.Err)
	}
	if !res.Detected || len(res.Keypoints) != types.NumLandmarks {
		t.Errorf("keypoints should survive an inference failure: %+v", res)
	}
	if res.Error == "" {
		t.Error("expected error text")
	}
}

func TestAnalyzeImage_BadEngineOutput(t *testing.T) {
	out := shootingOutput()
	out.TopDownLogits = out.TopDownLogits[:4]

	res := newTestAnalyzer(t, &fakeEngine{out: out}).AnalyzeImage(context.Background(), scenarioFrame())
	if !errors.Is(res.Err, types.ErrInvalidInference) {
		t.Errorf("expected ErrInvalidInference, got %v", res.Err)
	}

	res = newTestAnalyzer(t, &fakeEngine{}).AnalyzeImage(context.Background(), scenarioFrame())
	if !errors.Is(res.Err, types.ErrInvalidInference) {
		t.Errorf("expected ErrInvalidInference for nil output, got %v", res.Err)
	}
}

func TestAnalyzeImage_MalformedAttentionIsLocalized(t *testing.T) {
	out := shootingOutput()
	out.Attention = types.AttentionMatrix{Shape: []int{33, 4}, Data: []float64{1, 2}}

	res := newTestAnalyzer(t, &fakeEngine{out: out}).AnalyzeImage(context.Background(), scenarioFrame())
	if res.Outcome != types.OutcomeDetected {
		t.Fatalf("attention failure must not fail the analysis: %s %v", res.Outcome, res.Err)
	}
	if len(res.Analysis.ImportantJoints) != 0 {
		t.Errorf("expected no important joints, got %v", res.Analysis.ImportantJoints)
	}
	if len(res.Analysis.Feedback.Strengths) == 0 {
		t.Error("feedback should still be populated")
	}
}

func TestAnalyzeImage_OversizedAttentionIsLocalized(t *testing.T) {
	out := shootingOutput()
	out.Attention = types.AttentionMatrix{Shape: []int{1 << 50, 0}}

	res := newTestAnalyzer(t, &fakeEngine{out: out}).AnalyzeImage(context.Background(), scenarioFrame())
	if res.Outcome != types.OutcomeDetected {
		t.Fatalf("attention failure must not fail the analysis: %s %v", res.Outcome, res.Err)
	}
	if res.Analysis == nil {
		t.Fatal("analysis should be populated")
	}
	if res.Analysis.PoseMetrics.ShoulderWidth != 1 || res.Analysis.PoseMetrics.BalanceRatio != 1 {
		t.Errorf("unexpected metrics %+v", res.Analysis.PoseMetrics)
	}
	if len(res.Analysis.ImportantJoints) != 0 {
		t.Errorf("expected no important joints, got %v", res.Analysis.ImportantJoints)
	}
	if len(res.Analysis.Feedback.Strengths) == 0 || len(res.Analysis.Feedback.TechniqueTips) == 0 {
		t.Errorf("feedback should still be populated: %+v", res.Analysis.Feedback)
	}
}

func TestAnalyzeImage_PanicBecomesUnexpectedFault(t *testing.T) {
	res := newTestAnalyzer(t, &fakeEngine{panic: true}).AnalyzeImage(context.Background(), scenarioFrame())

	if res.Outcome != types.OutcomeFailed || !errors.Is(res.Err, types.ErrUnexpectedFault) {
		t.Errorf("expected ErrUnexpectedFault, got %s %v", res.Outcome, res.Err)
	}
	if !res.Detected {
		t.Error("a fault after detection keeps detected=true")
	}
}

func TestAnalyzeVideo_NotDetected(t *testing.T) {
	engine := &fakeEngine{out: shootingOutput()}
	res := newTestAnalyzer(t, engine).AnalyzeVideo(context.Background(), types.KeypointSequence{})

	if res.Outcome != types.OutcomeNotDetected || res.Message != "No poses detected in video" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.MotionAnalysis != nil || res.OverallPrediction != nil || res.Feedback != nil || res.SequenceLength != 0 {
		t.Errorf("not-detected video result must not populate other fields: %+v", res)
	}
	if engine.calls.Load() != 0 {
		t.Error("engine must not be called for an empty sequence")
	}
}

func TestAnalyzeVideo_IdenticalFrames(t *testing.T) {
	seq := types.KeypointSequence{scenarioFrame(), scenarioFrame()}
	res := newTestAnalyzer(t, &fakeEngine{out: shootingOutput()}).AnalyzeVideo(context.Background(), seq)

	if res.Outcome != types.OutcomeDetected {
		t.Fatalf("expected detected outcome, got %s %v", res.Outcome, res.Err)
	}
	if res.SequenceLength != 2 {
		t.Errorf("sequence length = %d", res.SequenceLength)
	}

	m := res.MotionAnalysis
	if m.AverageVelocity != 0 || m.MaxVelocity != 0 || m.VelocityVariance != 0 || m.SmoothnessScore != 0 {
		t.Errorf("expected zero motion metrics, got %+v", m)
	}
	if m.MotionQuality != types.MotionJerky {
		t.Errorf("motion quality = %q, want Jerky", m.MotionQuality)
	}

	if res.OverallPrediction.TopDownClass != types.PoseShooting || res.OverallPrediction.BottomUpClass != types.PoseDribbling {
		t.Errorf("unexpected prediction %+v", res.OverallPrediction)
	}
	if res.Feedback.OverallAssessment != "Technique needs significant improvement" {
		t.Errorf("unexpected assessment %q", res.Feedback.OverallAssessment)
	}
	if res.Feedback.MotionQuality != types.MotionJerky {
		t.Errorf("feedback motion quality = %q", res.Feedback.MotionQuality)
	}
}

func TestAnalyzeVideo_SingleFrame(t *testing.T) {
	res := newTestAnalyzer(t, &fakeEngine{out: shootingOutput()}).AnalyzeVideo(context.Background(), types.KeypointSequence{scenarioFrame()})

	if res.Outcome != types.OutcomeDetected {
		t.Fatalf("a short sequence still yields a detected result: %s %v", res.Outcome, res.Err)
	}
	if res.MotionAnalysis.Error == "" || res.MotionAnalysis.MotionQuality != types.MotionUnknown {
		t.Errorf("expected insufficient-frames motion report, got %+v", res.MotionAnalysis)
	}
	if res.Feedback.MotionQuality != types.MotionUnknown {
		t.Errorf("feedback motion quality = %q, want Unknown", res.Feedback.MotionQuality)
	}
}

func TestAnalyzeVideo_EngineFailureKeepsMotion(t *testing.T) {
	seq := types.KeypointSequence{scenarioFrame(), scenarioFrame(), scenarioFrame()}
	res := newTestAnalyzer(t, &fakeEngine{err: context.DeadlineExceeded}).AnalyzeVideo(context.Background(), seq)

	if res.Outcome != types.OutcomeFailed || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected failure wrapping deadline error, got %s %v", res.Outcome, res.Err)
	}
	if res.MotionAnalysis == nil || res.SequenceLength != 3 {
		t.Errorf("motion analysis should survive an inference failure: %+v", res)
	}
	if res.OverallPrediction != nil || res.Feedback != nil {
		t.Error("prediction and feedback need the engine")
	}
}

func TestAnalyzeVideo_InvalidFrame(t *testing.T) {
	seq := types.KeypointSequence{scenarioFrame(), make(types.KeypointFrame, 5)}
	res := newTestAnalyzer(t, &fakeEngine{out: shootingOutput()}).AnalyzeVideo(context.Background(), seq)

	if !errors.Is(res.Err, types.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", res.Err)
	}
}

func TestAnalyzeVideo_PanicBecomesUnexpectedFault(t *testing.T) {
	seq := types.KeypointSequence{scenarioFrame(), scenarioFrame()}
	res := newTestAnalyzer(t, &fakeEngine{panic: true}).AnalyzeVideo(context.Background(), seq)

	if !errors.Is(res.Err, types.ErrUnexpectedFault) {
		t.Errorf("expected ErrUnexpectedFault, got %v", res.Err)
	}
}

func TestAnalyzer_ConcurrentUse(t *testing.T) {
	a := newTestAnalyzer(t, &fakeEngine{out: shootingOutput()})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := a.AnalyzeImage(context.Background(), scenarioFrame())
			if res.Outcome != types.OutcomeDetected {
				t.Errorf("unexpected outcome %s", res.Outcome)
			}
		}()
	}
	wg.Wait()
}

func TestSoftmax(t *testing.T) {
	p := Softmax([]float64{1000, 1000, 1000, 1000})
	for _, v := range p {
		if math.Abs(v-0.25) > 1e-12 {
			t.Errorf("expected uniform probabilities for large equal logits, got %v", p)
		}
	}

	if Softmax(nil) != nil {
		t.Error("expected nil for empty logits")
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		in   []float64
		want int
	}{
		{nil, -1},
		{[]float64{1}, 0},
		{[]float64{1, 3, 2}, 1},
		{[]float64{2, 5, 5, 1}, 1},
	}
	for _, tt := range tests {
		if got := Argmax(tt.in); got != tt.want {
			t.Errorf("Argmax(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// Property: the top-down probability map sums to 1 for any finite logits.
func TestAnalyzeImage_ProbabilitiesSumToOne(t *testing.T) {
	property := func(top, bottom [types.NumPoseClasses]float64) bool {
		for i := range top {
			top[i] = math.Mod(top[i], 50)
			bottom[i] = math.Mod(bottom[i], 50)
		}
		out := &types.InferenceOutput{
			TopDownLogits:  top[:],
			BottomUpLogits: bottom[:],
			QualityRaw:     0.5,
		}

		res := newTestAnalyzer(t, &fakeEngine{out: out}).AnalyzeImage(context.Background(), scenarioFrame())
		if res.Outcome != types.OutcomeDetected {
			return false
		}

		var sum float64
		for _, p := range res.TopDown.Probabilities {
			if p < 0 || p > 1 {
				return false
			}
			sum += p
		}
		return math.Abs(sum-1) < 1e-9
	}

	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}
