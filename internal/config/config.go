// Package config loads the posecam service configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file, then the process environment. Command-line flags are applied
// by the caller last.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-posecam/pkg/audioio"
	"github.com/teslashibe/go-posecam/pkg/camera"
	"github.com/teslashibe/go-posecam/pkg/layout"
	"github.com/teslashibe/go-posecam/pkg/pose"
)

// Default service configuration.
const (
	DefaultPort         = "8080"
	DefaultSettingsPath = "posecam-settings.json"
	DefaultTickInterval = 33 * time.Millisecond
	DefaultDetectEvery  = 100 * time.Millisecond
)

// Video sources.
const (
	SourceLocal  = "local"
	SourceDevice = "device"
)

// Caption recognizers.
const (
	CaptionsRealtime = "realtime"
	CaptionsGoogle   = "google"
	CaptionsOff      = "off"
)

// Config is the complete service configuration.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	WebRoot  string `yaml:"web_root"`

	// Source is where camera frames come from: local or device.
	Source string `yaml:"source"`

	// Captions selects the recognizer: realtime, google or off.
	Captions string `yaml:"captions"`
	Language string `yaml:"language"`

	SettingsPath string        `yaml:"settings"`
	TickInterval time.Duration `yaml:"tick_interval"`
	DetectEvery  time.Duration `yaml:"detect_every"`

	// Initial canvas size, until a display reports its viewport.
	CanvasWidth  int `yaml:"canvas_width"`
	CanvasHeight int `yaml:"canvas_height"`

	// Settle is how long orientation changes must be quiet before the
	// camera is reacquired.
	Settle time.Duration `yaml:"orientation_settle"`

	// Secrets come from the environment only.
	OpenAIKey string `yaml:"-"`
	GoogleKey string `yaml:"-"`

	Camera camera.Config  `yaml:"camera"`
	Pose   pose.Config    `yaml:"pose"`
	Audio  audioio.Config `yaml:"audio"`
}

// ConfigError describes an invalid field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:         DefaultPort,
		LogLevel:     "info",
		WebRoot:      "./web",
		Source:       SourceDevice,
		Captions:     CaptionsRealtime,
		Language:     "en",
		SettingsPath: DefaultSettingsPath,
		TickInterval: DefaultTickInterval,
		DetectEvery:  DefaultDetectEvery,
		CanvasWidth:  1280,
		CanvasHeight: 720,
		Settle:       layout.DefaultSettle,
		Camera:       camera.DefaultConfig(),
		Pose:         pose.DefaultConfig(),
		Audio:        audioio.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), the .env file in the working directory (if present) and the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "POSECAM_PORT")
	setString(&c.LogLevel, "POSECAM_LOG_LEVEL")
	setString(&c.Source, "POSECAM_SOURCE")
	setString(&c.Captions, "POSECAM_CAPTIONS")
	setString(&c.Language, "POSECAM_LANGUAGE")
	setString(&c.SettingsPath, "POSECAM_SETTINGS")
	setString(&c.Pose.ModelPath, "POSECAM_MODEL")
	setString(&c.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.GoogleKey, "GOOGLE_API_KEY")

	if v := os.Getenv("POSECAM_FACING"); v != "" {
		f, err := camera.ParseFacingMode(v)
		if err != nil {
			return &ConfigError{Field: "POSECAM_FACING", Message: err.Error()}
		}
		c.Camera.Facing = f
	}
	if v := os.Getenv("POSECAM_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ConfigError{Field: "POSECAM_TICK", Message: err.Error()}
		}
		c.TickInterval = d
	}
	if v := os.Getenv("POSECAM_CAMERA_DEVICE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "POSECAM_CAMERA_DEVICE", Message: "must be an integer"}
		}
		c.Camera.UserDevice = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the configuration and its sub-configs. All problems are
// reported, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, &ConfigError{Field: "port", Message: "is required"})
	}
	switch c.Source {
	case SourceLocal, SourceDevice:
	default:
		errs = append(errs, &ConfigError{Field: "source", Message: fmt.Sprintf("unknown source %q", c.Source)})
	}
	switch c.Captions {
	case CaptionsRealtime, CaptionsGoogle, CaptionsOff:
	default:
		errs = append(errs, &ConfigError{Field: "captions", Message: fmt.Sprintf("unknown recognizer %q", c.Captions)})
	}
	if c.TickInterval <= 0 {
		errs = append(errs, &ConfigError{Field: "tick_interval", Message: "must be positive"})
	}
	if c.DetectEvery <= 0 {
		errs = append(errs, &ConfigError{Field: "detect_every", Message: "must be positive"})
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		errs = append(errs, &ConfigError{Field: "canvas", Message: "width and height must be positive"})
	}
	for _, msg := range c.Camera.Validate() {
		errs = append(errs, &ConfigError{Field: "camera", Message: msg})
	}
	if err := c.Pose.Validate(); err != nil {
		errs = append(errs, &ConfigError{Field: "pose", Message: err.Error()})
	}
	if err := c.Audio.Validate(); err != nil {
		errs = append(errs, &ConfigError{Field: "audio", Message: err.Error()})
	}
	return errors.Join(errs...)
}
