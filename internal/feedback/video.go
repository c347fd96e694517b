package feedback

import "github.com/sameeksha0725/basketball-pose-analyser/internal/types"

var (
	smoothnessDrills = []string{
		"Slow-motion practice drills",
		"Balance and stability exercises",
		"Form shooting with focus on consistency",
	}
	rhythmDrills = []string{
		"Metronome training for rhythm",
		"Repetitive motion drills",
		"Video analysis with rhythm counting",
	}
)

// SynthesizeVideo composes the movement-level assessment from the sequence
// quality score and its motion metrics. Metrics from a too-short sequence
// are read as zeros.
func SynthesizeVideo(quality float64, m types.MotionMetrics) types.VideoFeedbackBundle {
	fb := types.VideoFeedbackBundle{
		MotionQuality:     m.MotionQuality,
		KeyObservations:   []string{},
		ImprovementAreas:  []string{},
		DrillsRecommended: []string{},
	}
	if fb.MotionQuality == "" {
		fb.MotionQuality = types.MotionUnknown
	}

	switch {
	case quality > 0.8 && m.SmoothnessScore > 0.7:
		fb.OverallAssessment = "Excellent technique with smooth execution"
	case quality > 0.6 && m.SmoothnessScore > 0.5:
		fb.OverallAssessment = "Good form with room for refinement"
	default:
		fb.OverallAssessment = "Technique needs significant improvement"
	}

	if m.RhythmConsistency > 0.7 {
		fb.KeyObservations = append(fb.KeyObservations, "Consistent rhythm throughout movement")
	} else {
		fb.ImprovementAreas = append(fb.ImprovementAreas, "Work on maintaining consistent rhythm")
	}

	if m.VelocityVariance < 0.1 {
		fb.KeyObservations = append(fb.KeyObservations, "Good speed control")
	} else {
		fb.ImprovementAreas = append(fb.ImprovementAreas, "Focus on controlling movement speed")
	}

	if m.SmoothnessScore < 0.5 {
		fb.DrillsRecommended = append(fb.DrillsRecommended, smoothnessDrills...)
	}
	if m.RhythmConsistency < 0.5 {
		fb.DrillsRecommended = append(fb.DrillsRecommended, rhythmDrills...)
	}

	return fb
}
