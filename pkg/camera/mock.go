package camera

import (
	"context"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockSource produces solid frames sized to the requested constraints.
type MockSource struct {
	slot frameSlot

	mu       sync.Mutex
	requests []Constraints
	stops    int
	err      error
}

// NewMockSource creates a mock source.
func NewMockSource() *MockSource {
	return &MockSource{}
}

func (m *MockSource) Name() string { return "mock" }

// SetErr makes subsequent acquisitions fail with err.
func (m *MockSource) SetErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Acquire records c and, unless failing, stores one gray frame of c's size.
func (m *MockSource) Acquire(ctx context.Context, c Constraints) error {
	m.mu.Lock()
	m.requests = append(m.requests, c)
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return err
	}

	img := gocv.NewMatWithSize(c.Height, c.Width, gocv.MatTypeCV8UC3)
	img.SetTo(gocv.NewScalar(128, 128, 128, 0))
	m.slot.store(img, time.Now())
	return nil
}

func (m *MockSource) Latest() (Frame, bool) {
	return m.slot.latest()
}

func (m *MockSource) Stop() error {
	m.mu.Lock()
	m.stops++
	m.mu.Unlock()
	return nil
}

// Requests returns the constraints passed to Acquire, oldest first.
func (m *MockSource) Requests() []Constraints {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Constraints(nil), m.requests...)
}

// Stops returns how many times Stop was called.
func (m *MockSource) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Close drops the stored frame.
func (m *MockSource) Close() error {
	m.slot.close()
	return nil
}

var _ Source = (*MockSource)(nil)
