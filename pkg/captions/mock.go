package captions

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-posecam/pkg/audioio"
)

// MockRecognizer emits scripted text. Each run emits Script, then waits for
// ctx or the audio channel to close. If Err is set, a run returns it right
// after the script instead of waiting.
type MockRecognizer struct {
	Script []Text

	mu  sync.Mutex
	err error

	runs   atomic.Int64
	chunks atomic.Int64
}

// NewMockRecognizer creates a mock that emits texts on every run.
func NewMockRecognizer(texts ...Text) *MockRecognizer {
	return &MockRecognizer{Script: texts}
}

// SetErr sets the error returned by subsequent runs.
func (m *MockRecognizer) SetErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MockRecognizer) Name() string { return "mock" }

func (m *MockRecognizer) Run(ctx context.Context, audio <-chan audioio.AudioChunk, emit TextFunc) error {
	m.runs.Add(1)
	for _, t := range m.Script {
		emit(t.Text, t.Final)
	}

	m.mu.Lock()
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-audio:
			if !ok {
				return ErrSessionEnded
			}
			m.chunks.Add(1)
		}
	}
}

// Runs returns how many times Run was called.
func (m *MockRecognizer) Runs() int64 { return m.runs.Load() }

// Chunks returns how many audio chunks were consumed.
func (m *MockRecognizer) Chunks() int64 { return m.chunks.Load() }

var _ Recognizer = (*MockRecognizer)(nil)
