// Package settings holds the two user-tunable values, the keypoint
// confidence threshold and the microphone gain, and persists them locally.
package settings

import (
	"errors"
	"fmt"
)

// Defaults and slider bounds.
const (
	DefaultConfidence = 0.9
	DefaultGain       = 4.0

	MinConfidence = 0.0
	MaxConfidence = 1.0
	MinGain       = 0.1
	MaxGain       = 10.0
)

// ErrOutOfRange is returned when a value falls outside its slider bounds.
var ErrOutOfRange = errors.New("settings: value out of range")

// Settings is the persisted state, keyed by name.
type Settings struct {
	Confidence float64 `json:"confidence"`
	Gain       float64 `json:"gain"`
}

// Default returns the settings used when nothing has been saved.
func Default() Settings {
	return Settings{
		Confidence: DefaultConfidence,
		Gain:       DefaultGain,
	}
}

// Validate checks both values against their bounds.
func (s Settings) Validate() error {
	if err := checkConfidence(s.Confidence); err != nil {
		return err
	}
	return checkGain(s.Gain)
}

func checkConfidence(v float64) error {
	if v < MinConfidence || v > MaxConfidence {
		return fmt.Errorf("%w: confidence %.3f not in [%.1f, %.1f]", ErrOutOfRange, v, MinConfidence, MaxConfidence)
	}
	return nil
}

func checkGain(v float64) error {
	if v < MinGain || v > MaxGain {
		return fmt.Errorf("%w: gain %.3f not in [%.1f, %.1f]", ErrOutOfRange, v, MinGain, MaxGain)
	}
	return nil
}
