// Package coach turns finished analysis results into a short coaching note
// written by an LLM.
package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

// ErrNothingToNarrate is returned for results without a detected pose
var ErrNothingToNarrate = errors.New("result has no detected pose")

// Narrator writes a coaching note for a result
type Narrator interface {
	Narrate(ctx context.Context, result types.Result) (string, error)
}

const systemPrompt = `You are an experienced basketball coach reviewing automated pose analysis of a player.
Write one short paragraph (at most four sentences) addressed to the player.
Start with what they do well, then give the single most important correction.
Only use the measurements provided. Do not invent numbers or mention the analysis software.`

// BuildPrompt renders the facts of a result the narrator may use
func BuildPrompt(result types.Result) (string, error) {
	switch r := result.(type) {
	case *types.ImageAnalysisResult:
		return imagePrompt(r)
	case *types.VideoAnalysisResult:
		return videoPrompt(r)
	default:
		return "", fmt.Errorf("unsupported result kind %q", result.Kind())
	}
}

func imagePrompt(r *types.ImageAnalysisResult) (string, error) {
	if r.Outcome != types.OutcomeDetected || r.Analysis == nil {
		return "", ErrNothingToNarrate
	}
	a := r.Analysis
	m := a.PoseMetrics

	var b strings.Builder
	b.WriteString("Single photo analysis.\n")
	fmt.Fprintf(&b, "Detected pose: %s", a.DetectedPose)
	if r.TopDown != nil {
		fmt.Fprintf(&b, " (confidence %.0f%%)", r.TopDown.Confidence*100)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Form quality: %.2f (%s)\n", a.QualityAssessment.Score, a.QualityAssessment.Rating)
	fmt.Fprintf(&b, "Shoulder width %.3f, hip width %.3f, torso angle %.1f degrees, balance ratio %.2f, leg length difference %.3f\n",
		m.ShoulderWidth, m.HipWidth, m.TorsoAngle, m.BalanceRatio, m.BodySymmetry)
	if len(a.ImportantJoints) > 0 {
		fmt.Fprintf(&b, "Joints the model focused on: %s\n", strings.Join(a.ImportantJoints, ", "))
	}
	writeList(&b, "Strengths", a.Feedback.Strengths)
	writeList(&b, "Improvements", a.Feedback.Improvements)
	writeList(&b, "Technique tips", a.Feedback.TechniqueTips)
	return b.String(), nil
}

func videoPrompt(r *types.VideoAnalysisResult) (string, error) {
	if r.Outcome != types.OutcomeDetected || r.OverallPrediction == nil {
		return "", ErrNothingToNarrate
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Video analysis over %d frames.\n", r.SequenceLength)
	fmt.Fprintf(&b, "Movement: %s\n", r.OverallPrediction.TopDownClass)
	fmt.Fprintf(&b, "Form quality: %.2f\n", r.OverallPrediction.QualityScore)
	if m := r.MotionAnalysis; m != nil && m.Error == "" {
		fmt.Fprintf(&b, "Motion: %s, smoothness %.2f, rhythm consistency %.2f, average speed %.4f\n",
			m.MotionQuality, m.SmoothnessScore, m.RhythmConsistency, m.AverageVelocity)
	}
	if f := r.Feedback; f != nil {
		fmt.Fprintf(&b, "Overall: %s\n", f.OverallAssessment)
		writeList(&b, "Observations", f.KeyObservations)
		writeList(&b, "Improvement areas", f.ImprovementAreas)
		writeList(&b, "Recommended drills", f.DrillsRecommended)
	}
	return b.String(), nil
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
