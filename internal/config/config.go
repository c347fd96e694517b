package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemon and CLI look for configuration
const DefaultPath = "config/poseanalyzer.yaml"

// Config represents the complete pose analyzer configuration
type Config struct {
	InstanceID       string          `yaml:"instance_id"`
	ShutdownTimeoutS int             `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	HealthPort       int             `yaml:"health_port"`        // HTTP port for /health and /readiness (default: 8080)
	HealthSchedule   string          `yaml:"health_schedule"`    // cron expression for health publishing (default: @every 30s)
	Engine           EngineConfig    `yaml:"engine"`
	Extractor        ExtractorConfig `yaml:"extractor"`
	Batch            BatchConfig     `yaml:"batch"`
	MQTT             MQTTConfig      `yaml:"mqtt"`
	Coach            CoachConfig     `yaml:"coach"`
}

// EngineConfig contains pose classifier worker settings
type EngineConfig struct {
	Command      string `yaml:"command"`    // python wrapper script
	ModelPath    string `yaml:"model_path"` // classifier weights
	Device       string `yaml:"device"`     // cpu, cuda
	CallTimeoutS int    `yaml:"call_timeout_s"`
}

// ExtractorConfig contains keypoint extractor worker settings
type ExtractorConfig struct {
	Command                string  `yaml:"command"`
	MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence"`
	MaxImageDim            int     `yaml:"max_image_dim"` // 0 disables downscaling
	CallTimeoutS           int     `yaml:"call_timeout_s"`
	SequenceTimeoutS       int     `yaml:"sequence_timeout_s"`
}

// BatchConfig contains settings for the batch CLI
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker string          `yaml:"broker"` // empty disables publishing
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic names
type MQTTTopics struct {
	Control   string `yaml:"control"`
	Results   string `yaml:"results"`
	Health    string `yaml:"health"`
	Responses string `yaml:"responses"`
}

// CoachConfig contains settings for the optional LLM coaching note
type CoachConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
	TimeoutS  int    `yaml:"timeout_s"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration, applies env overrides and validates it
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Env vars override YAML values
	envOverride(&cfg.Coach.APIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.MQTT.Broker, "POSE_MQTT_BROKER")

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func envOverride(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

// ShutdownTimeout returns the graceful shutdown timeout
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// CallTimeout returns the per-call timeout of the engine worker
func (c EngineConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutS) * time.Second
}

// CallTimeout returns the per-call timeout of the extractor worker
func (c ExtractorConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutS) * time.Second
}

// SequenceTimeout returns the timeout for whole-video extraction
func (c ExtractorConfig) SequenceTimeout() time.Duration {
	return time.Duration(c.SequenceTimeoutS) * time.Second
}

// Timeout returns the request timeout for coaching notes
func (c CoachConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutS) * time.Second
}
