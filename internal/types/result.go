package types

import (
	"encoding/json"
	"time"
)

// Outcome tells callers which variant of an analysis result they hold.
type Outcome string

const (
	OutcomeDetected    Outcome = "detected"
	OutcomeNotDetected Outcome = "not_detected"
	OutcomeFailed      Outcome = "failed"
)

// Result is implemented by every analysis result that can be published.
type Result interface {
	// Kind returns the result kind (image_analysis, video_analysis)
	Kind() string
	// ToJSON converts the result to JSON bytes
	ToJSON() ([]byte, error)
}

// PoseMetrics are the geometric body measurements of a single frame.
type PoseMetrics struct {
	ShoulderWidth  float64 `json:"shoulder_width"`
	HipWidth       float64 `json:"hip_width"`
	TorsoAngle     float64 `json:"torso_angle"`
	BalanceRatio   float64 `json:"balance_ratio"`
	LeftLegLength  float64 `json:"left_leg_length"`
	RightLegLength float64 `json:"right_leg_length"`
	BodySymmetry   float64 `json:"body_symmetry"`
}

// ClassificationResult is the prediction of one classifier head.
type ClassificationResult struct {
	Class         PoseClass          `json:"class"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"all_probabilities,omitempty"`
}

// QualityAssessment pairs the raw quality score with its rating label.
type QualityAssessment struct {
	Score  float64 `json:"score"`
	Rating string  `json:"rating"`
}

// FeedbackBundle is the coaching feedback for a single pose.
type FeedbackBundle struct {
	Strengths     []string `json:"strengths"`
	Improvements  []string `json:"improvements"`
	TechniqueTips []string `json:"technique_tips"`
}

// PoseAnalysis aggregates the derived analysis of a detected pose.
type PoseAnalysis struct {
	DetectedPose      PoseClass         `json:"detected_pose"`
	PoseMetrics       PoseMetrics       `json:"pose_metrics"`
	QualityAssessment QualityAssessment `json:"quality_assessment"`
	ImportantJoints   []string          `json:"important_joints"`
	Feedback          FeedbackBundle    `json:"feedback"`
}

// ImageAnalysisResult is the outcome of analyzing a single frame.
type ImageAnalysisResult struct {
	RequestID    string                `json:"request_id,omitempty"`
	Source       string                `json:"source,omitempty"`
	Outcome      Outcome               `json:"outcome"`
	Detected     bool                  `json:"keypoints_detected"`
	Message      string                `json:"message,omitempty"`
	Keypoints    KeypointFrame         `json:"keypoints,omitempty"`
	TopDown      *ClassificationResult `json:"top_down_prediction,omitempty"`
	BottomUp     *ClassificationResult `json:"bottom_up_prediction,omitempty"`
	QualityScore *float64              `json:"quality_score,omitempty"`
	Analysis     *PoseAnalysis         `json:"analysis,omitempty"`
	CoachNote    string                `json:"coach_note,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
	Error        string                `json:"error,omitempty"`

	// Err is the typed cause behind Error when Outcome is OutcomeFailed.
	Err error `json:"-"`
}

// Kind implements Result
func (r *ImageAnalysisResult) Kind() string {
	return "image_analysis"
}

// ToJSON implements Result
func (r *ImageAnalysisResult) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// MotionQuality labels the smoothness of a movement.
type MotionQuality string

const (
	MotionSmooth   MotionQuality = "Smooth"
	MotionModerate MotionQuality = "Moderate"
	MotionJerky    MotionQuality = "Jerky"
	MotionUnknown  MotionQuality = "Unknown"
)

// MotionMetrics are the velocity-derived signals of a keypoint sequence.
// Error is set when the sequence was too short to measure.
type MotionMetrics struct {
	AverageVelocity   float64       `json:"average_velocity"`
	MaxVelocity       float64       `json:"max_velocity"`
	VelocityVariance  float64       `json:"velocity_variance"`
	SmoothnessScore   float64       `json:"smoothness_score"`
	RhythmConsistency float64       `json:"rhythm_consistency"`
	MotionQuality     MotionQuality `json:"motion_quality,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// VideoFeedbackBundle is the coaching feedback for a whole movement.
type VideoFeedbackBundle struct {
	OverallAssessment string        `json:"overall_assessment"`
	MotionQuality     MotionQuality `json:"motion_quality"`
	KeyObservations   []string      `json:"key_observations"`
	ImprovementAreas  []string      `json:"improvement_areas"`
	DrillsRecommended []string      `json:"drills_recommended"`
}

// OverallPrediction is the sequence-level classification.
type OverallPrediction struct {
	TopDownClass  PoseClass `json:"top_down_class"`
	BottomUpClass PoseClass `json:"bottom_up_class"`
	QualityScore  float64   `json:"quality_score"`
}

// VideoAnalysisResult is the outcome of analyzing a keypoint sequence.
type VideoAnalysisResult struct {
	RequestID         string               `json:"request_id,omitempty"`
	Source            string               `json:"source,omitempty"`
	Outcome           Outcome              `json:"outcome"`
	Detected          bool                 `json:"keypoints_detected"`
	Message           string               `json:"message,omitempty"`
	SequenceLength    int                  `json:"sequence_length,omitempty"`
	OverallPrediction *OverallPrediction   `json:"overall_prediction,omitempty"`
	MotionAnalysis    *MotionMetrics       `json:"motion_analysis,omitempty"`
	Feedback          *VideoFeedbackBundle `json:"feedback,omitempty"`
	CoachNote         string               `json:"coach_note,omitempty"`
	Timestamp         time.Time            `json:"timestamp"`
	Error             string               `json:"error,omitempty"`

	// Err is the typed cause behind Error when Outcome is OutcomeFailed.
	Err error `json:"-"`
}

// Kind implements Result
func (r *VideoAnalysisResult) Kind() string {
	return "video_analysis"
}

// ToJSON implements Result
func (r *VideoAnalysisResult) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
