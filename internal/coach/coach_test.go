package coach

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

func detectedImage() *types.ImageAnalysisResult {
	return &types.ImageAnalysisResult{
		Outcome:  types.OutcomeDetected,
		Detected: true,
		TopDown:  &types.ClassificationResult{Class: types.PoseJumpShot, Confidence: 0.82},
		Analysis: &types.PoseAnalysis{
			DetectedPose:      types.PoseJumpShot,
			PoseMetrics:       types.PoseMetrics{ShoulderWidth: 0.2, TorsoAngle: -88.5, BalanceRatio: 1.1},
			QualityAssessment: types.QualityAssessment{Score: 0.71, Rating: "Good"},
			ImportantJoints:   []string{"right_wrist", "right_elbow"},
			Feedback: types.FeedbackBundle{
				Strengths:     []string{"Good shoulder alignment"},
				Improvements:  []string{"Widen your base"},
				TechniqueTips: []string{},
			},
		},
	}
}

func detectedVideo() *types.VideoAnalysisResult {
	return &types.VideoAnalysisResult{
		Outcome:           types.OutcomeDetected,
		Detected:          true,
		SequenceLength:    48,
		OverallPrediction: &types.OverallPrediction{TopDownClass: types.PoseLayup, QualityScore: 0.64},
		MotionAnalysis:    &types.MotionMetrics{SmoothnessScore: 0.8, RhythmConsistency: 0.5, MotionQuality: types.MotionSmooth},
		Feedback: &types.VideoFeedbackBundle{
			OverallAssessment: "Good technique with room for improvement",
			MotionQuality:     types.MotionSmooth,
			DrillsRecommended: []string{"Rhythm training with metronome"},
		},
	}
}

func TestBuildPrompt_Image(t *testing.T) {
	prompt, err := BuildPrompt(detectedImage())
	if err != nil {
		t.Fatalf("BuildPrompt failed: %v", err)
	}
	for _, want := range []string{
		"Detected pose: jump_shot (confidence 82%)",
		"Form quality: 0.71 (Good)",
		"torso angle -88.5 degrees",
		"right_wrist, right_elbow",
		"- Widen your base",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "Technique tips") {
		t.Error("empty lists should be omitted")
	}
}

func TestBuildPrompt_Video(t *testing.T) {
	prompt, err := BuildPrompt(detectedVideo())
	if err != nil {
		t.Fatalf("BuildPrompt failed: %v", err)
	}
	for _, want := range []string{
		"48 frames",
		"Movement: layup",
		"Motion: Smooth, smoothness 0.80",
		"- Rhythm training with metronome",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPrompt_NothingToNarrate(t *testing.T) {
	tests := []struct {
		name   string
		result types.Result
	}{
		{"image not detected", &types.ImageAnalysisResult{Outcome: types.OutcomeNotDetected}},
		{"image failed", &types.ImageAnalysisResult{Outcome: types.OutcomeFailed, Detected: true}},
		{"video not detected", &types.VideoAnalysisResult{Outcome: types.OutcomeNotDetected}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildPrompt(tt.result); !errors.Is(err, ErrNothingToNarrate) {
				t.Errorf("expected ErrNothingToNarrate, got %v", err)
			}
		})
	}
}

func TestNewAnthropicNarrator_Validation(t *testing.T) {
	if _, err := NewAnthropicNarrator(AnthropicConfig{Model: "m"}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewAnthropicNarrator(AnthropicConfig{APIKey: "k"}); err == nil {
		t.Error("expected error without model")
	}
}

func TestAnthropicNarrator_Narrate(t *testing.T) {
	var gotModel, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			gotModel = body.Model
			if len(body.Messages) > 0 && len(body.Messages[0].Content) > 0 {
				gotPrompt = body.Messages[0].Content[0].Text
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_test",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "  Nice elevation on that jump shot. Widen your base.  "}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 120, "output_tokens": 18}
		}`))
	}))
	defer srv.Close()

	n, err := NewAnthropicNarrator(AnthropicConfig{
		APIKey:  "sk-test",
		Model:   "claude-test",
		Timeout: 5 * time.Second,
		BaseURL: srv.URL + "/",
	})
	if err != nil {
		t.Fatal(err)
	}

	note, err := n.Narrate(context.Background(), detectedImage())
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if note != "Nice elevation on that jump shot. Widen your base." {
		t.Errorf("note = %q", note)
	}
	if gotModel != "claude-test" {
		t.Errorf("model sent = %q", gotModel)
	}
	if !strings.Contains(gotPrompt, "Detected pose: jump_shot") {
		t.Errorf("prompt sent = %q", gotPrompt)
	}
}

func TestAnthropicNarrator_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`))
	}))
	defer srv.Close()

	n, err := NewAnthropicNarrator(AnthropicConfig{APIKey: "sk-test", Model: "nope", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := n.Narrate(context.Background(), detectedVideo()); err == nil {
		t.Error("expected api error")
	}
}

func TestAnthropicNarrator_SkipsUndetected(t *testing.T) {
	n, err := NewAnthropicNarrator(AnthropicConfig{APIKey: "sk-test", Model: "m", BaseURL: "http://127.0.0.1:1/"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = n.Narrate(context.Background(), &types.ImageAnalysisResult{Outcome: types.OutcomeNotDetected})
	if !errors.Is(err, ErrNothingToNarrate) {
		t.Errorf("expected ErrNothingToNarrate without calling the api, got %v", err)
	}
}
