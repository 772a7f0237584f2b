package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
)

// Live holds the current settings. Reads are lock-free so the render loop
// can call Confidence every tick while the dashboard writes.
type Live struct {
	confidence atomic.Uint64
	gain       atomic.Uint64

	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	onChange []func(Settings)
}

// NewLive creates live settings backed by store, starting from defaults.
// Call Load to restore persisted values.
func NewLive(store Store, logger *slog.Logger) *Live {
	if store == nil {
		store = &MemoryStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Live{store: store, logger: logger}
	l.set(Default())
	return l
}

// Confidence returns the current keypoint threshold.
func (l *Live) Confidence() float64 {
	return math.Float64frombits(l.confidence.Load())
}

// Gain returns the current microphone gain.
func (l *Live) Gain() float64 {
	return math.Float64frombits(l.gain.Load())
}

// Get returns both values.
func (l *Live) Get() Settings {
	return Settings{Confidence: l.Confidence(), Gain: l.Gain()}
}

// SetConfidence updates the threshold. Takes effect on the next tick.
func (l *Live) SetConfidence(v float64) error {
	if err := checkConfidence(v); err != nil {
		return err
	}
	l.confidence.Store(math.Float64bits(v))
	l.notify()
	return nil
}

// SetGain updates the microphone gain.
func (l *Live) SetGain(v float64) error {
	if err := checkGain(v); err != nil {
		return err
	}
	l.gain.Store(math.Float64bits(v))
	l.notify()
	return nil
}

// Apply validates and sets both values.
func (l *Live) Apply(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	l.set(s)
	l.notify()
	return nil
}

// OnChange registers a callback run after every successful update.
func (l *Live) OnChange(fn func(Settings)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, fn)
	l.mu.Unlock()
}

// Load restores persisted values. A missing or empty store keeps the
// defaults. Values that fail validation are ignored with a warning.
func (l *Live) Load() error {
	data, err := l.store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		l.logger.Warn("ignoring saved settings", "error", err)
		return nil
	}

	l.set(s)
	l.notify()
	return nil
}

// Save persists the current values.
func (l *Live) Save() error {
	data, err := json.MarshalIndent(l.Get(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := l.store.Save(data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Close releases the store.
func (l *Live) Close() error {
	return l.store.Close()
}

func (l *Live) set(s Settings) {
	l.confidence.Store(math.Float64bits(s.Confidence))
	l.gain.Store(math.Float64bits(s.Gain))
}

func (l *Live) notify() {
	l.mu.Lock()
	fns := append([]func(Settings){}, l.onChange...)
	l.mu.Unlock()

	s := l.Get()
	for _, fn := range fns {
		fn(s)
	}
}
