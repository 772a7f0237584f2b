package pose

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// Sentinel errors for detector construction and inference.
var (
	// ErrModelNotFound is returned when the model file does not exist.
	ErrModelNotFound = errors.New("pose: model file not found")

	// ErrEmptyFrame is returned when asked to detect on an empty Mat.
	ErrEmptyFrame = errors.New("pose: empty frame")
)

// Detector is the interface for pose-estimation backends.
type Detector interface {
	// Detect finds poses in the frame. Keypoint positions are in the
	// frame's pixel space.
	Detect(frame gocv.Mat) ([]Pose, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration.
// Model knobs live here so the rendering core never sees them.
type Config struct {
	ModelPath        string  `yaml:"model_path" json:"model_path"`
	ConfidenceThresh float32 `yaml:"confidence" json:"confidence"`   // Minimum person score
	NMSThresh        float32 `yaml:"nms" json:"nms"`                 // Box overlap threshold
	InputWidth       int     `yaml:"input_width" json:"input_width"` // Model input width
	InputHeight      int     `yaml:"input_height" json:"input_height"`
	SkeletonMinScore float64 `yaml:"skeleton_min_score" json:"skeleton_min_score"` // Both ends of an edge must score this
	MaxPoses         int     `yaml:"max_poses" json:"max_poses"`
}

// DefaultConfig returns production defaults for YOLOv8n-pose.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/yolov8n-pose.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
		SkeletonMinScore: 0.5,
		MaxPoses:         5,
	}
}

// LightConfig trades accuracy for speed with a 256px input, the
// resolution the browser model ran at.
func LightConfig() Config {
	cfg := DefaultConfig()
	cfg.InputWidth = 256
	cfg.InputHeight = 256
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("pose: model_path is required")
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("pose: input size must be positive, got %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.InputWidth%32 != 0 || c.InputHeight%32 != 0 {
		return fmt.Errorf("pose: input size must be a multiple of 32, got %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.ConfidenceThresh < 0 || c.ConfidenceThresh > 1 {
		return fmt.Errorf("pose: confidence must be between 0 and 1, got %v", c.ConfidenceThresh)
	}
	if c.SkeletonMinScore < 0 || c.SkeletonMinScore > 1 {
		return fmt.Errorf("pose: skeleton_min_score must be between 0 and 1, got %v", c.SkeletonMinScore)
	}
	return nil
}
