package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poseanalyzer.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckConfigFile(t *testing.T) {
	t.Setenv("POSE_MQTT_BROKER", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	tests := []struct {
		name     string
		body     string
		wantCode int
		want     []string
	}{
		{
			name:     "valid with defaults",
			body:     "instance_id: court-01\nengine:\n  model_path: models/pose.pt\n",
			wantCode: 0,
			want:     []string{": ok", "instance:  court-01", "models/pose.pt (cpu)", ":8080, published @every 30s", "mqtt:      disabled"},
		},
		{
			name:     "broker shown",
			body:     "instance_id: court-02\nengine:\n  model_path: m.pt\nmqtt:\n  broker: localhost:1883\n",
			wantCode: 0,
			want:     []string{"mqtt:      localhost:1883"},
		},
		{
			name:     "missing model path",
			body:     "instance_id: court-01\n",
			wantCode: 1,
			want:     []string{"model_path"},
		},
		{
			name:     "bad instance id",
			body:     "instance_id: Court_01\nengine:\n  model_path: m.pt\n",
			wantCode: 1,
			want:     []string{"instance_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code := checkConfigFile(writeConfig(t, tt.body), &out)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (output %q)", code, tt.wantCode, out.String())
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output %q does not contain %q", out.String(), w)
				}
			}
		})
	}
}

func TestCheckConfigFile_Missing(t *testing.T) {
	var out bytes.Buffer
	if code := checkConfigFile(filepath.Join(t.TempDir(), "absent.yaml"), &out); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
