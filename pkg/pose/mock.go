package pose

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns scripted results, one per Detect call.
// When the script runs out the last result repeats.
type MockDetector struct {
	mu      sync.Mutex
	results [][]Pose
	err     error
	calls   int
	closed  bool
}

// NewMockDetector creates a mock that replays results in order.
func NewMockDetector(results ...[]Pose) *MockDetector {
	return &MockDetector{results: results}
}

// SetError makes every subsequent Detect fail with err.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Detect returns the next scripted result.
func (m *MockDetector) Detect(frame gocv.Mat) ([]Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) == 0 {
		return nil, nil
	}

	i := m.calls - 1
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	return m.results[i], nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Ensure MockDetector implements Detector
var _ Detector = (*MockDetector)(nil)
