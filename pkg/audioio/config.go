// Package audioio provides microphone input for the VU meter and the
// caption recognizers.
//
// Backends:
//   - push - PCM published by the browser device (websocket or WebRTC)
//   - exec - a local microphone read through arecord or ffmpeg
//   - mock - synthetic audio for tests and headless runs
package audioio

import (
	"fmt"
	"runtime"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto picks push when a device feeds audio, exec otherwise.
	BackendAuto Backend = "auto"
	// BackendPush receives chunks from the device hub or WebRTC ingest.
	BackendPush Backend = "push"
	// BackendExec captures from a local microphone via a subprocess.
	BackendExec Backend = "exec"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate every chunk is delivered at. Pushed audio at another rate
	// is resampled. Default: 24000 (OpenAI realtime transcription).
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels delivered. Default: 1.
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the chunk length for exec and mock sources.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// QueueSize is how many chunks may wait before new ones are dropped.
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	// Device is the capture device for exec sources.
	// Linux: an ALSA name like "default" or "plughw:1,0".
	// macOS: an avfoundation index like ":0".
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     24000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		QueueSize:      32,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendPush, BackendExec, BackendMock:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 || c.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	return nil
}

// BufferSize returns the number of samples per channel in one buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes (int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}

func (c *Config) device() string {
	if c.Device != "" {
		return c.Device
	}
	if runtime.GOOS == "darwin" {
		return ":0"
	}
	return "default"
}
