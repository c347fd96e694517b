package config

import (
	"fmt"
	"regexp"

	"github.com/robfig/cron/v3"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

var validDevices = map[string]bool{"cpu": true, "cuda": true, "mps": true}

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	// Validate instance_id
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}
	if cfg.HealthPort == 0 {
		cfg.HealthPort = 8080
	}
	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		return fmt.Errorf("health_port must be in 1..65535, got %d", cfg.HealthPort)
	}
	if cfg.HealthSchedule == "" {
		cfg.HealthSchedule = "@every 30s"
	}
	if _, err := cron.ParseStandard(cfg.HealthSchedule); err != nil {
		return fmt.Errorf("health_schedule %q: %w", cfg.HealthSchedule, err)
	}

	if err := validateEngine(&cfg.Engine); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := validateExtractor(&cfg.Extractor); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}

	if cfg.Batch.Concurrency <= 0 {
		cfg.Batch.Concurrency = 4
	}

	// Set default topics if not provided
	if cfg.MQTT.Topics.Control == "" {
		cfg.MQTT.Topics.Control = fmt.Sprintf("pose/control/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Results == "" {
		cfg.MQTT.Topics.Results = fmt.Sprintf("pose/results/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Health == "" {
		cfg.MQTT.Topics.Health = fmt.Sprintf("pose/health/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Responses == "" {
		cfg.MQTT.Topics.Responses = fmt.Sprintf("pose/responses/%s", cfg.InstanceID)
	}

	// Set default QoS if not provided
	if cfg.MQTT.QoS == nil {
		cfg.MQTT.QoS = map[string]byte{
			"control":        1,
			"image_analysis": 1,
			"video_analysis": 1,
			"health":         0,
		}
	}
	for name, qos := range cfg.MQTT.QoS {
		if qos > 2 {
			return fmt.Errorf("mqtt.qos.%s must be 0, 1 or 2, got %d", name, qos)
		}
	}

	if cfg.Coach.Enabled {
		if cfg.Coach.APIKey == "" {
			return fmt.Errorf("coach.api_key (or ANTHROPIC_API_KEY) is required when coach is enabled")
		}
		if cfg.Coach.Model == "" {
			cfg.Coach.Model = "claude-3-5-haiku-latest"
		}
		if cfg.Coach.MaxTokens <= 0 {
			cfg.Coach.MaxTokens = 300
		}
		if cfg.Coach.TimeoutS <= 0 {
			cfg.Coach.TimeoutS = 20
		}
	}

	return nil
}

func validateEngine(e *EngineConfig) error {
	if e.Command == "" {
		e.Command = "models/run_pose_engine.sh"
	}
	if e.ModelPath == "" {
		return fmt.Errorf("model_path is required")
	}
	if e.Device == "" {
		e.Device = "cpu"
	}
	if !validDevices[e.Device] {
		return fmt.Errorf("unknown device %q (must be cpu, cuda or mps)", e.Device)
	}
	if e.CallTimeoutS <= 0 {
		e.CallTimeoutS = 10
	}
	return nil
}

func validateExtractor(x *ExtractorConfig) error {
	if x.Command == "" {
		x.Command = "models/run_keypoint_extractor.sh"
	}
	if x.MinDetectionConfidence == 0 {
		x.MinDetectionConfidence = 0.5
	}
	if x.MinTrackingConfidence == 0 {
		x.MinTrackingConfidence = 0.5
	}
	if x.MinDetectionConfidence < 0 || x.MinDetectionConfidence > 1 {
		return fmt.Errorf("min_detection_confidence must be in [0,1], got %v", x.MinDetectionConfidence)
	}
	if x.MinTrackingConfidence < 0 || x.MinTrackingConfidence > 1 {
		return fmt.Errorf("min_tracking_confidence must be in [0,1], got %v", x.MinTrackingConfidence)
	}
	if x.MaxImageDim < 0 {
		return fmt.Errorf("max_image_dim must be >= 0, got %d", x.MaxImageDim)
	}
	if x.CallTimeoutS <= 0 {
		x.CallTimeoutS = 10
	}
	if x.SequenceTimeoutS <= 0 {
		x.SequenceTimeoutS = 120
	}
	return nil
}
