package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-posecam/pkg/camera"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.TickInterval != 33*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posecam.yaml")
	data := `
port: "9000"
source: local
captions: google
tick_interval: 50ms
camera:
  facing: environment
  framerate: 15
pose:
  model_path: models/custom.onnx
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"port", cfg.Port, "9000"},
		{"source", cfg.Source, SourceLocal},
		{"captions", cfg.Captions, CaptionsGoogle},
		{"tick", cfg.TickInterval, 50 * time.Millisecond},
		{"facing", cfg.Camera.Facing, camera.FacingEnvironment},
		{"framerate", cfg.Camera.Framerate, 15},
		{"model", cfg.Pose.ModelPath, "models/custom.onnx"},
		{"untouched default", cfg.Camera.LongEdge, 1280},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing config file should fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POSECAM_PORT", "7070")
	t.Setenv("POSECAM_MODEL", "/tmp/model.onnx")
	t.Setenv("POSECAM_FACING", "rear")
	t.Setenv("POSECAM_TICK", "20ms")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != "7070" || cfg.Pose.ModelPath != "/tmp/model.onnx" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Camera.Facing != camera.FacingEnvironment {
		t.Errorf("Facing = %q", cfg.Camera.Facing)
	}
	if cfg.TickInterval != 20*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval)
	}
	if cfg.OpenAIKey != "sk-test" {
		t.Error("OpenAI key not loaded")
	}
}

func TestEnvErrors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"POSECAM_FACING", "sideways"},
		{"POSECAM_TICK", "soon"},
		{"POSECAM_CAMERA_DEVICE", "front"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.key {
				t.Errorf("Load error = %v, want ConfigError for %s", err, tt.key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Port = ""
	cfg.Source = "satellite"
	cfg.Captions = "telepathy"
	cfg.TickInterval = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate should fail")
	}

	var fields []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var cfgErr *ConfigError
		if errors.As(e, &cfgErr) {
			fields = append(fields, cfgErr.Field)
		}
	}
	want := []string{"port", "source", "captions", "tick_interval"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields[%d] = %s, want %s", i, fields[i], want[i])
		}
	}
}
