package camera

import (
	"context"
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrNoFrame is returned when a source has not produced a frame yet.
var ErrNoFrame = errors.New("camera: no frame available")

// Frame is one captured image. The Mat belongs to whoever received the
// Frame and must be closed.
type Frame struct {
	Mat    gocv.Mat
	Width  int
	Height int
	Seq    uint64
	At     time.Time
}

// Close releases the frame's Mat.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Source produces camera frames.
type Source interface {
	Name() string

	// Acquire stops any previous capture and starts one matching c. It may
	// return before the first frame arrives. The last frame stays
	// available until a new one replaces it.
	Acquire(ctx context.Context, c Constraints) error

	// Latest returns a copy of the most recent frame.
	Latest() (Frame, bool)

	Stop() error
}

// frameSlot holds the latest frame. It owns the stored Mat.
type frameSlot struct {
	mu  sync.Mutex
	mat gocv.Mat
	has bool
	seq uint64
	at  time.Time
}

// store replaces the current frame, taking ownership of m.
func (s *frameSlot) store(m gocv.Mat, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.has {
		s.mat.Close()
	}
	s.mat = m
	s.has = true
	s.seq++
	s.at = at
}

func (s *frameSlot) latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has {
		return Frame{}, false
	}
	return Frame{
		Mat:    s.mat.Clone(),
		Width:  s.mat.Cols(),
		Height: s.mat.Rows(),
		Seq:    s.seq,
		At:     s.at,
	}, true
}

// size returns the current frame size without copying it.
func (s *frameSlot) size() (w, h int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has {
		return 0, 0, false
	}
	return s.mat.Cols(), s.mat.Rows(), true
}

func (s *frameSlot) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.has {
		s.mat.Close()
		s.has = false
	}
}
