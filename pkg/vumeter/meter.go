// Package vumeter turns microphone PCM into the normalized level and
// peak-hold marker shown on the control overlay.
package vumeter

import (
	"math"
	"sync"
	"time"
)

const (
	// PeakHold is how long a peak marker survives without a new peak.
	PeakHold = 1000 * time.Millisecond

	// Floor for dBFS readings of silence.
	SilenceDBFS = -100.0
)

// Reading is what the overlay draws.
type Reading struct {
	Level float64 `json:"level"` // [0,1]
	Peak  float64 `json:"peak"`  // [0,1], >= Level while held
	DBFS  float64 `json:"dbfs"`
}

// Meter tracks the current level and a trailing peak.
type Meter struct {
	mu        sync.Mutex
	level     float64
	sampledAt time.Time
	peak      float64
	peakAt    time.Time
	hold      time.Duration
}

// New creates a meter.
func New() *Meter {
	return &Meter{hold: PeakHold}
}

// Sample records a normalized level at now.
//
// The peak follows any level at or above it. When no new peak has arrived
// within PeakHold it drops to the current level.
func (m *Meter) Sample(level float64, now time.Time) Reading {
	level = clamp(level, 0, 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.level = level
	m.sampledAt = now
	if level >= m.peak || m.peakAt.IsZero() || now.Sub(m.peakAt) > m.hold {
		m.peak = level
		m.peakAt = now
	}
	return m.readingLocked()
}

// Reading returns the values as of now. A level older than PeakHold reads
// as silence and an expired peak falls back to the level, so the meter
// decays when audio stops arriving.
func (m *Meter) Reading(now time.Time) Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sampledAt.IsZero() && now.Sub(m.sampledAt) > m.hold {
		m.level = 0
	}
	if !m.peakAt.IsZero() && now.Sub(m.peakAt) > m.hold {
		m.peak = m.level
	}
	return m.readingLocked()
}

// Reset clears level and peak.
func (m *Meter) Reset() {
	m.mu.Lock()
	m.level, m.peak = 0, 0
	m.sampledAt, m.peakAt = time.Time{}, time.Time{}
	m.mu.Unlock()
}

func (m *Meter) readingLocked() Reading {
	return Reading{Level: m.level, Peak: m.peak, DBFS: DBFS(m.level)}
}

// Level returns the RMS of samples scaled by gain, clamped to [0,1].
func Level(samples []int16, gain float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return clamp(rms*gain, 0, 1)
}

// DBFS converts a normalized level to decibels relative to full scale.
func DBFS(level float64) float64 {
	if level <= 1e-10 {
		return SilenceDBFS
	}
	return 20 * math.Log10(level)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
