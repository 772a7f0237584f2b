// Package camera supplies the video frames posecam draws the skeleton over.
// Frames come from a local capture device or from a browser device that
// publishes its camera; either way the active source is chosen by facing
// mode and re-acquired when the display orientation flips.
package camera

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-posecam/pkg/layout"
)

// FacingMode selects the front or rear camera.
type FacingMode string

const (
	FacingUser        FacingMode = "user"        // front camera
	FacingEnvironment FacingMode = "environment" // rear camera
)

// Other returns the opposite facing mode.
func (f FacingMode) Other() FacingMode {
	if f == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

// ParseFacingMode accepts "user"/"front" and "environment"/"rear"/"back".
func ParseFacingMode(s string) (FacingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "front":
		return FacingUser, nil
	case "environment", "rear", "back":
		return FacingEnvironment, nil
	}
	return "", fmt.Errorf("unknown facing mode %q", s)
}

// Config holds the camera parameters. They can be modified via the camera
// API at runtime.
type Config struct {
	Facing FacingMode `json:"facing" yaml:"facing"`

	// Ideal capture size. The long edge runs along the display's long
	// axis, so portrait asks for ShortEdge×LongEdge.
	LongEdge  int `json:"long_edge" yaml:"long_edge"`
	ShortEdge int `json:"short_edge" yaml:"short_edge"`

	Framerate int `json:"framerate" yaml:"framerate"` // Target FPS
	Quality   int `json:"quality" yaml:"quality"`     // JPEG quality 1-100 asked of devices

	// Local capture device indices per facing mode.
	UserDevice        int `json:"user_device" yaml:"user_device"`
	EnvironmentDevice int `json:"environment_device" yaml:"environment_device"`
}

const (
	MaxEdge      = 3840
	MinEdge      = 120
	MaxFramerate = 60
)

// DefaultConfig asks for 1280×720 from the front camera.
func DefaultConfig() Config {
	return Config{
		Facing:            FacingUser,
		LongEdge:          1280,
		ShortEdge:         720,
		Framerate:         30,
		Quality:           80,
		UserDevice:        0,
		EnvironmentDevice: 1,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Facing != FacingUser && c.Facing != FacingEnvironment {
		errors = append(errors, "facing must be user or environment")
	}
	if c.LongEdge < MinEdge || c.LongEdge > MaxEdge {
		errors = append(errors, fmt.Sprintf("long_edge must be between %d and %d", MinEdge, MaxEdge))
	}
	if c.ShortEdge < MinEdge || c.ShortEdge > c.LongEdge {
		errors = append(errors, "short_edge must be at least 120 and at most long_edge")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 60")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.UserDevice < 0 || c.EnvironmentDevice < 0 {
		errors = append(errors, "device indices must not be negative")
	}

	return errors
}

// Device returns the local capture index for a facing mode.
func (c *Config) Device(f FacingMode) int {
	if f == FacingEnvironment {
		return c.EnvironmentDevice
	}
	return c.UserDevice
}

// Constraints is what a source is asked to deliver.
type Constraints struct {
	Facing    FacingMode `json:"facing_mode"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Framerate int        `json:"framerate,omitempty"`
	Quality   int        `json:"quality,omitempty"`
}

// ConstraintsFor builds the ideal constraints for a facing mode and
// display orientation from this config.
func (c *Config) ConstraintsFor(f FacingMode, o layout.Orientation) Constraints {
	w, h := c.LongEdge, c.ShortEdge
	if o == layout.Portrait {
		w, h = h, w
	}
	return Constraints{
		Facing:    f,
		Width:     w,
		Height:    h,
		Framerate: c.Framerate,
		Quality:   c.Quality,
	}
}

// ConstraintsFor returns the default constraints: 720×1280 in portrait,
// 1280×720 in landscape.
func ConstraintsFor(f FacingMode, o layout.Orientation) Constraints {
	cfg := DefaultConfig()
	return cfg.ConstraintsFor(f, o)
}
