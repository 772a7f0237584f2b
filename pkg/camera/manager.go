package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-posecam/pkg/layout"
)

// Manager holds the camera configuration and the active source. It
// re-acquires the source when the facing mode or orientation changes.
type Manager struct {
	source Source
	logger *slog.Logger

	config      Config
	facing      FacingMode
	orientation layout.Orientation
	mu          sync.RWMutex

	// acquireMu serializes acquisitions; gen drops stale ones.
	acquireMu sync.Mutex
	gen       atomic.Uint64

	acquisitions atomic.Int64
	failures     atomic.Int64

	// Callback when config changes (for applying to camera)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager for source using cfg.
func NewManager(source Source, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Facing == "" {
		cfg.Facing = FacingUser
	}
	return &Manager{
		source:      source,
		logger:      logger,
		config:      cfg,
		facing:      cfg.Facing,
		orientation: layout.Landscape,
	}
}

// Source returns the active source.
func (m *Manager) Source() Source {
	return m.source
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig updates the camera configuration.
func (m *Manager) SetConfig(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.Lock()
	if cfg.Facing != m.config.Facing {
		m.facing = cfg.Facing
	}
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	// Check for preset first
	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		cfg = *preset
		delete(params, "preset")
	}

	for key, value := range params {
		switch key {
		case "facing":
			if v, ok := value.(string); ok {
				f, err := ParseFacingMode(v)
				if err != nil {
					return err
				}
				cfg.Facing = f
			}
		case "long_edge":
			if v, ok := toInt(value); ok {
				cfg.LongEdge = v
			}
		case "short_edge":
			if v, ok := toInt(value); ok {
				cfg.ShortEdge = v
			}
		case "framerate":
			if v, ok := toInt(value); ok {
				cfg.Framerate = v
			}
		case "quality":
			if v, ok := toInt(value); ok {
				cfg.Quality = v
			}
		case "user_device":
			if v, ok := toInt(value); ok {
				cfg.UserDevice = v
			}
		case "environment_device":
			if v, ok := toInt(value); ok {
				cfg.EnvironmentDevice = v
			}
		}
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	cfg := m.GetConfig()

	data, _ := json.Marshal(cfg)
	var result map[string]interface{}
	json.Unmarshal(data, &result)

	return result
}

// Facing returns the current facing mode.
func (m *Manager) Facing() FacingMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.facing
}

// Constraints returns what the next acquisition will ask for.
func (m *Manager) Constraints() Constraints {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ConstraintsFor(m.facing, m.orientation)
}

// Switch toggles between front and rear camera and re-acquires.
func (m *Manager) Switch(ctx context.Context) (FacingMode, <-chan error) {
	m.mu.Lock()
	m.facing = m.facing.Other()
	facing := m.facing
	m.mu.Unlock()

	m.logger.Info("switching camera", "facing", facing)
	return facing, m.acquire(ctx)
}

// Reacquire restarts the source for orientation o. It returns at once; the
// channel reports the outcome. Until the new source delivers, Latest keeps
// returning the last frame.
func (m *Manager) Reacquire(ctx context.Context, o layout.Orientation) <-chan error {
	m.mu.Lock()
	m.orientation = o
	m.mu.Unlock()
	return m.acquire(ctx)
}

func (m *Manager) acquire(ctx context.Context) <-chan error {
	gen := m.gen.Add(1)
	result := make(chan error, 1)

	go func() {
		m.acquireMu.Lock()
		defer m.acquireMu.Unlock()

		if m.gen.Load() != gen {
			// A newer request superseded this one.
			result <- nil
			return
		}

		c := m.Constraints()
		m.source.Stop()
		err := m.source.Acquire(ctx, c)
		m.acquisitions.Add(1)
		if err != nil {
			m.failures.Add(1)
			m.logger.Warn("camera acquisition failed",
				"source", m.source.Name(),
				"facing", c.Facing,
				"error", err,
			)
		}
		result <- err
	}()

	return result
}

// Latest returns a copy of the most recent frame.
func (m *Manager) Latest() (Frame, bool) {
	return m.source.Latest()
}

// CloneLatest returns a copy of the most recent frame's Mat.
func (m *Manager) CloneLatest() (gocv.Mat, bool) {
	f, ok := m.source.Latest()
	if !ok {
		return gocv.Mat{}, false
	}
	return f.Mat, true
}

// Stop stops the active source.
func (m *Manager) Stop() error {
	m.gen.Add(1)
	m.acquireMu.Lock()
	defer m.acquireMu.Unlock()
	return m.source.Stop()
}

// Stats describes the camera state for the status API.
type Stats struct {
	Source       string      `json:"source"`
	Facing       FacingMode  `json:"facing"`
	Constraints  Constraints `json:"constraints"`
	Acquisitions int64       `json:"acquisitions"`
	Failures     int64       `json:"failures"`
}

func (m *Manager) Stats() Stats {
	return Stats{
		Source:       m.source.Name(),
		Facing:       m.Facing(),
		Constraints:  m.Constraints(),
		Acquisitions: m.acquisitions.Load(),
		Failures:     m.failures.Load(),
	}
}

// Helper functions for type conversion

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
